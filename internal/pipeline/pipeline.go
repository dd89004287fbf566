// Package pipeline models multi-stage analysis pipeline definitions:
// ordered compositions of engines (or nested pipelines) with a blend mode
// describing how stage outputs combine.
package pipeline

import (
	"fmt"
	"sort"
	"time"
)

// BlendMode describes how stages combine their outputs.
type BlendMode string

const (
	BlendSequential   BlendMode = "sequential"
	BlendParallel     BlendMode = "parallel"
	BlendMerge        BlendMode = "merge"
	BlendLLMSelection BlendMode = "llm_selection"
)

// BlendModes lists every valid blend mode.
var BlendModes = []BlendMode{BlendSequential, BlendParallel, BlendMerge, BlendLLMSelection}

// Valid reports whether m is a known blend mode.
func (m BlendMode) Valid() bool {
	for _, known := range BlendModes {
		if m == known {
			return true
		}
	}
	return false
}

// Status is a soft lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// Stage is one step in a pipeline. A stage runs exactly one of: a single
// engine, a nested pipeline, or a set of sub-pass engines blended by the
// stage's own blend mode.
type Stage struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	StageOrder int    `json:"stage_order" yaml:"stage_order"`
	StageName  string `json:"stage_name" yaml:"stage_name"`

	EngineKey         string    `json:"engine_key,omitempty" yaml:"engine_key,omitempty"`
	SubPipelineKey    string    `json:"sub_pipeline_key,omitempty" yaml:"sub_pipeline_key,omitempty"`
	BlendMode         BlendMode `json:"blend_mode,omitempty" yaml:"blend_mode,omitempty"`
	SubPassEngineKeys []string  `json:"sub_pass_engine_keys,omitempty" yaml:"sub_pass_engine_keys,omitempty"`

	PassContext bool                   `json:"pass_context" yaml:"pass_context"`
	Config      map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// Validate checks a single stage in isolation.
func (s *Stage) Validate() error {
	if s.StageName == "" {
		return fmt.Errorf("stage %d missing stage_name", s.StageOrder)
	}
	if s.StageOrder < 0 {
		return fmt.Errorf("stage %q has negative stage_order %d", s.StageName, s.StageOrder)
	}

	targets := 0
	if s.EngineKey != "" {
		targets++
	}
	if s.SubPipelineKey != "" {
		targets++
	}
	if len(s.SubPassEngineKeys) > 0 {
		targets++
	}
	if targets == 0 {
		return fmt.Errorf("stage %q targets nothing: set engine_key, sub_pipeline_key, or sub_pass_engine_keys", s.StageName)
	}
	if targets > 1 {
		return fmt.Errorf("stage %q targets more than one of engine_key, sub_pipeline_key, sub_pass_engine_keys", s.StageName)
	}

	if s.BlendMode != "" && !s.BlendMode.Valid() {
		return fmt.Errorf("stage %q has unknown blend_mode %q", s.StageName, s.BlendMode)
	}
	if len(s.SubPassEngineKeys) > 0 && s.BlendMode == "" {
		return fmt.Errorf("stage %q has sub-pass engines but no blend_mode", s.StageName)
	}

	return nil
}

// Pipeline is one multi-stage composition. Stage orders are zero-based and
// contiguous; Stages is kept sorted by order.
type Pipeline struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	PipelineKey string `json:"pipeline_key" yaml:"pipeline_key"`

	PipelineName string `json:"pipeline_name" yaml:"pipeline_name"`
	Description  string `json:"description" yaml:"description"`

	BlendMode BlendMode `json:"blend_mode" yaml:"blend_mode,omitempty"`
	Category  string    `json:"category,omitempty" yaml:"category,omitempty"`
	Status    Status    `json:"status" yaml:"status,omitempty"`

	Stages []Stage `json:"stages" yaml:"stages,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// ApplyDefaults fills zero-value lifecycle fields. New stages default to
// passing context forward.
func (p *Pipeline) ApplyDefaults() {
	if p.BlendMode == "" {
		p.BlendMode = BlendSequential
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
}

// Validate checks the pipeline and all its stages, including that stage
// orders form a contiguous zero-based sequence.
func (p *Pipeline) Validate() error {
	if p.PipelineKey == "" {
		return fmt.Errorf("pipeline missing pipeline_key")
	}
	if p.PipelineName == "" {
		return fmt.Errorf("pipeline %s missing pipeline_name", p.PipelineKey)
	}
	if p.Description == "" {
		return fmt.Errorf("pipeline %s missing description", p.PipelineKey)
	}
	if p.BlendMode != "" && !p.BlendMode.Valid() {
		return fmt.Errorf("pipeline %s has unknown blend_mode %q", p.PipelineKey, p.BlendMode)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("pipeline %s has unknown status %q", p.PipelineKey, p.Status)
	}

	seen := make(map[int]bool, len(p.Stages))
	for i := range p.Stages {
		if err := p.Stages[i].Validate(); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.PipelineKey, err)
		}
		if seen[p.Stages[i].StageOrder] {
			return fmt.Errorf("pipeline %s has duplicate stage_order %d", p.PipelineKey, p.Stages[i].StageOrder)
		}
		seen[p.Stages[i].StageOrder] = true
	}
	for i := 0; i < len(p.Stages); i++ {
		if !seen[i] {
			return fmt.Errorf("pipeline %s stage orders are not contiguous from 0 (missing %d)", p.PipelineKey, i)
		}
	}

	if p.ReferencesSubPipeline(p.PipelineKey) {
		return fmt.Errorf("pipeline %s references itself as a sub-pipeline", p.PipelineKey)
	}

	return nil
}

// ReferencesEngine reports whether any stage runs the given engine,
// directly or as a sub-pass.
func (p *Pipeline) ReferencesEngine(key string) bool {
	for i := range p.Stages {
		if p.Stages[i].EngineKey == key {
			return true
		}
		for _, sub := range p.Stages[i].SubPassEngineKeys {
			if sub == key {
				return true
			}
		}
	}
	return false
}

// ReferencesSubPipeline reports whether any stage delegates to the given
// sub-pipeline.
func (p *Pipeline) ReferencesSubPipeline(key string) bool {
	for i := range p.Stages {
		if p.Stages[i].SubPipelineKey == key {
			return true
		}
	}
	return false
}

// SortStages orders Stages by stage_order.
func (p *Pipeline) SortStages() {
	sort.SliceStable(p.Stages, func(i, j int) bool {
		return p.Stages[i].StageOrder < p.Stages[j].StageOrder
	})
}

// StageByOrder returns the stage with the given order.
func (p *Pipeline) StageByOrder(order int) (*Stage, bool) {
	for i := range p.Stages {
		if p.Stages[i].StageOrder == order {
			return &p.Stages[i], true
		}
	}
	return nil, false
}

// AddStage appends a stage and re-sorts.
func (p *Pipeline) AddStage(s Stage) {
	p.Stages = append(p.Stages, s)
	p.SortStages()
}

// RemoveStage deletes the stage with the given order and renumbers the
// remainder so orders stay contiguous.
func (p *Pipeline) RemoveStage(order int) bool {
	for i := range p.Stages {
		if p.Stages[i].StageOrder == order {
			p.Stages = append(p.Stages[:i], p.Stages[i+1:]...)
			p.SortStages()
			for j := range p.Stages {
				p.Stages[j].StageOrder = j
			}
			return true
		}
	}
	return false
}

// Reorder rearranges stages. newOrder lists the current stage orders in
// their desired new sequence and must mention every stage exactly once.
func (p *Pipeline) Reorder(newOrder []int) error {
	current := make(map[int]bool, len(p.Stages))
	for i := range p.Stages {
		current[p.Stages[i].StageOrder] = true
	}
	if len(newOrder) != len(p.Stages) {
		return fmt.Errorf("reorder must include all %d stages", len(p.Stages))
	}
	seen := make(map[int]bool, len(newOrder))
	for _, o := range newOrder {
		if !current[o] {
			return fmt.Errorf("reorder references unknown stage_order %d", o)
		}
		if seen[o] {
			return fmt.Errorf("reorder repeats stage_order %d", o)
		}
		seen[o] = true
	}

	orderMap := make(map[int]int, len(newOrder))
	for newPos, oldOrder := range newOrder {
		orderMap[oldOrder] = newPos
	}
	for i := range p.Stages {
		p.Stages[i].StageOrder = orderMap[p.Stages[i].StageOrder]
	}
	p.SortStages()
	return nil
}

// Summary is the listing shape for pipelines.
type Summary struct {
	PipelineKey  string    `json:"pipeline_key"`
	PipelineName string    `json:"pipeline_name"`
	Description  string    `json:"description"`
	BlendMode    BlendMode `json:"blend_mode"`
	Category     string    `json:"category,omitempty"`
	StageCount   int       `json:"stage_count"`
	Status       Status    `json:"status"`
}

// Summarize produces the listing shape, truncating long descriptions.
func (p *Pipeline) Summarize() Summary {
	desc := p.Description
	// Truncate on rune boundaries so multibyte text survives intact.
	if r := []rune(desc); len(r) > 200 {
		desc = string(r[:200]) + "..."
	}
	return Summary{
		PipelineKey:  p.PipelineKey,
		PipelineName: p.PipelineName,
		Description:  desc,
		BlendMode:    p.BlendMode,
		Category:     p.Category,
		StageCount:   len(p.Stages),
		Status:       p.Status,
	}
}

// Clone returns a deep copy.
func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return nil
	}
	out := *p
	out.Stages = make([]Stage, len(p.Stages))
	for i, s := range p.Stages {
		s.SubPassEngineKeys = append([]string(nil), s.SubPassEngineKeys...)
		if s.Config != nil {
			cfg := make(map[string]interface{}, len(s.Config))
			for k, v := range s.Config {
				cfg[k] = v
			}
			s.Config = cfg
		}
		out.Stages[i] = s
	}
	return &out
}
