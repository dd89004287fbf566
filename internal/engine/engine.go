package engine

import (
	"fmt"
	"time"
)

// Kind classifies what an analysis engine does.
type Kind string

const (
	KindPrimitive  Kind = "primitive"
	KindRelational Kind = "relational"
	KindSynthesis  Kind = "synthesis"
	KindExtraction Kind = "extraction"
	KindComparison Kind = "comparison"
)

// Kinds lists all engine kinds.
var Kinds = []Kind{KindPrimitive, KindRelational, KindSynthesis, KindExtraction, KindComparison}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an engine definition.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusDraft      Status = "draft"
	StatusArchived   Status = "archived"
)

// Statuses lists all engine statuses.
var Statuses = []Status{StatusActive, StatusDeprecated, StatusDraft, StatusArchived}

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// KnownCategories are the semantic categories used to organize engines.
// Category is free-form in storage; this list drives CLI completion and
// display grouping only.
var KnownCategories = []string{
	"argument", "epistemology", "methodology", "systems", "concepts",
	"evidence", "temporal", "power", "institutional", "market",
	"rhetoric", "scholarly",
}

// Engine is a versioned analytical engine definition.
type Engine struct {
	ID        string `json:"id" yaml:"id,omitempty"`
	EngineKey string `json:"engine_key" yaml:"engine_key"`
	Version   int    `json:"version" yaml:"version,omitempty"`

	// Identity
	EngineName  string `json:"engine_name" yaml:"engine_name"`
	Description string `json:"description" yaml:"description"`

	// Classification
	Category           string `json:"category" yaml:"category"`
	Kind               Kind   `json:"kind" yaml:"kind,omitempty"`
	ReasoningDomain    string `json:"reasoning_domain,omitempty" yaml:"reasoning_domain,omitempty"`
	ResearcherQuestion string `json:"researcher_question,omitempty" yaml:"researcher_question,omitempty"`

	// Stage context for template-based prompt composition. Nil means the
	// engine still serves legacy static prompts.
	StageContext *StageContext `json:"stage_context,omitempty" yaml:"stage_context,omitempty"`

	// Legacy prompts, kept for engines not yet migrated to stage_context.
	ExtractionPrompt     string `json:"extraction_prompt,omitempty" yaml:"extraction_prompt,omitempty"`
	CurationPrompt       string `json:"curation_prompt,omitempty" yaml:"curation_prompt,omitempty"`
	ConcretizationPrompt string `json:"concretization_prompt,omitempty" yaml:"concretization_prompt,omitempty"`

	// Schema and focus
	CanonicalSchema map[string]interface{} `json:"canonical_schema" yaml:"canonical_schema"`
	ExtractionFocus []string               `json:"extraction_focus,omitempty" yaml:"extraction_focus,omitempty"`

	// Output compatibility
	PrimaryOutputModes []string `json:"primary_output_modes,omitempty" yaml:"primary_output_modes,omitempty"`

	// Paradigm associations
	ParadigmKeys []string `json:"paradigm_keys,omitempty" yaml:"paradigm_keys,omitempty"`

	// Optional profile metadata (strengths, limitations, pairing notes)
	EngineProfile map[string]interface{} `json:"engine_profile,omitempty" yaml:"engine_profile,omitempty"`

	// Status
	Status Status `json:"status" yaml:"status,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// HasStageContext reports whether the engine composes prompts from a stage
// context rather than serving legacy prompts.
func (e *Engine) HasStageContext() bool {
	return e != nil && e.StageContext != nil
}

// LegacyPrompt returns the stored static prompt for a stage, if any.
func (e *Engine) LegacyPrompt(stage Stage) string {
	if e == nil {
		return ""
	}
	switch stage {
	case StageExtraction:
		return e.ExtractionPrompt
	case StageCuration:
		return e.CurationPrompt
	case StageConcretization:
		return e.ConcretizationPrompt
	}
	return ""
}

// Validate checks that the engine definition is well formed.
func (e *Engine) Validate() error {
	if e.EngineKey == "" {
		return fmt.Errorf("engine missing engine_key")
	}
	if e.EngineName == "" {
		return fmt.Errorf("engine %s missing engine_name", e.EngineKey)
	}
	if e.Description == "" {
		return fmt.Errorf("engine %s missing description", e.EngineKey)
	}
	if e.Category == "" {
		return fmt.Errorf("engine %s missing category", e.EngineKey)
	}
	if e.Kind != "" && !e.Kind.Valid() {
		return fmt.Errorf("engine %s has unknown kind %q", e.EngineKey, e.Kind)
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("engine %s has unknown status %q", e.EngineKey, e.Status)
	}
	if err := e.StageContext.Validate(); err != nil {
		return fmt.Errorf("engine %s: %w", e.EngineKey, err)
	}
	return nil
}

// ApplyDefaults fills zero-valued classification fields.
func (e *Engine) ApplyDefaults() {
	if e.Kind == "" {
		e.Kind = KindPrimitive
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if e.Version == 0 {
		e.Version = 1
	}
}

// Clone returns a deep copy of the engine definition.
func (e *Engine) Clone() *Engine {
	if e == nil {
		return nil
	}
	out := *e
	out.StageContext = e.StageContext.Clone()
	out.ExtractionFocus = append([]string(nil), e.ExtractionFocus...)
	out.PrimaryOutputModes = append([]string(nil), e.PrimaryOutputModes...)
	out.ParadigmKeys = append([]string(nil), e.ParadigmKeys...)
	out.CanonicalSchema = cloneJSONMap(e.CanonicalSchema)
	out.EngineProfile = cloneJSONMap(e.EngineProfile)
	return &out
}

// Summary is the trimmed listing form of an engine.
type Summary struct {
	EngineKey       string   `json:"engine_key"`
	EngineName      string   `json:"engine_name"`
	Description     string   `json:"description"`
	Version         int      `json:"version"`
	Category        string   `json:"category"`
	Kind            Kind     `json:"kind"`
	ParadigmKeys    []string `json:"paradigm_keys"`
	Status          Status   `json:"status"`
	HasStageContext bool     `json:"has_stage_context"`
}

// Summarize produces the listing form, truncating long descriptions.
func (e *Engine) Summarize() Summary {
	desc := e.Description
	// Truncate on rune boundaries so multibyte text survives intact.
	if r := []rune(desc); len(r) > 200 {
		desc = string(r[:200]) + "..."
	}
	return Summary{
		EngineKey:       e.EngineKey,
		EngineName:      e.EngineName,
		Description:     desc,
		Version:         e.Version,
		Category:        e.Category,
		Kind:            e.Kind,
		ParadigmKeys:    e.ParadigmKeys,
		Status:          e.Status,
		HasStageContext: e.HasStageContext(),
	}
}

// VersionRecord is a full snapshot of an engine definition at one version.
type VersionRecord struct {
	ID            string    `json:"id"`
	EngineID      string    `json:"engine_id"`
	Version       int       `json:"version"`
	FullSnapshot  *Engine   `json:"full_snapshot"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func cloneJSONMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
