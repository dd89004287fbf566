// Package paradigm models 4-layer ontology paradigm definitions: the
// conceptual frameworks that engines declare allegiance to via their
// paradigm_keys. A paradigm carries identity, four ontology layers,
// traits, critique patterns, and engine associations, and can generate
// an LLM-ready primer from its definition.
package paradigm

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Status is a soft lifecycle state, stored as text.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Statuses lists every valid paradigm status.
var Statuses = []Status{StatusActive, StatusArchived}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// LayerNames lists the four ontology layers in canonical order.
var LayerNames = []string{"foundational", "structural", "dynamic", "explanatory"}

// FoundationalLayer holds what the paradigm takes for granted.
type FoundationalLayer struct {
	Assumptions     []string `json:"assumptions" yaml:"assumptions"`
	CoreTensions    []string `json:"core_tensions" yaml:"core_tensions"`
	ScopeConditions []string `json:"scope_conditions" yaml:"scope_conditions"`
}

// StructuralLayer holds what the paradigm sees the world as made of.
type StructuralLayer struct {
	PrimaryEntities  []string `json:"primary_entities" yaml:"primary_entities"`
	Relations        []string `json:"relations" yaml:"relations"`
	LevelsOfAnalysis []string `json:"levels_of_analysis" yaml:"levels_of_analysis"`
}

// DynamicLayer holds how the paradigm thinks change happens.
type DynamicLayer struct {
	ChangeMechanisms        []string `json:"change_mechanisms" yaml:"change_mechanisms"`
	TemporalPatterns        []string `json:"temporal_patterns" yaml:"temporal_patterns"`
	TransformationProcesses []string `json:"transformation_processes" yaml:"transformation_processes"`
}

// ExplanatoryLayer holds how the paradigm explains and evaluates.
type ExplanatoryLayer struct {
	KeyConcepts       []string `json:"key_concepts" yaml:"key_concepts"`
	AnalyticalMethods []string `json:"analytical_methods" yaml:"analytical_methods"`
	ProblemDiagnosis  []string `json:"problem_diagnosis" yaml:"problem_diagnosis"`
	IdealState        []string `json:"ideal_state" yaml:"ideal_state"`
}

// TraitDefinition describes one named trait a paradigm can activate.
type TraitDefinition struct {
	TraitName        string   `json:"trait_name" yaml:"trait_name"`
	TraitDescription string   `json:"trait_description" yaml:"trait_description"`
	TraitItems       []string `json:"trait_items" yaml:"trait_items"`
}

// CritiquePattern is a recurring failure mode the paradigm knows how to
// diagnose and repair.
type CritiquePattern struct {
	Pattern    string `json:"pattern" yaml:"pattern"`
	Diagnostic string `json:"diagnostic" yaml:"diagnostic"`
	Fix        string `json:"fix" yaml:"fix"`
}

// Paradigm is one 4-layer ontology definition. Versions are semantic
// ("1.0.0"); a full update bumps the minor version, a single-layer update
// bumps the patch version.
type Paradigm struct {
	ID          string `json:"id" yaml:"id,omitempty"`
	ParadigmKey string `json:"paradigm_key" yaml:"paradigm_key"`
	Version     string `json:"version" yaml:"version,omitempty"`

	ParadigmName    string `json:"paradigm_name" yaml:"paradigm_name"`
	Description     string `json:"description" yaml:"description"`
	GuidingThinkers string `json:"guiding_thinkers" yaml:"guiding_thinkers"`

	Foundational FoundationalLayer `json:"foundational" yaml:"foundational"`
	Structural   StructuralLayer   `json:"structural" yaml:"structural"`
	Dynamic      DynamicLayer      `json:"dynamic" yaml:"dynamic"`
	Explanatory  ExplanatoryLayer  `json:"explanatory" yaml:"explanatory"`

	ActiveTraits     []string          `json:"active_traits" yaml:"active_traits,omitempty"`
	TraitDefinitions []TraitDefinition `json:"trait_definitions" yaml:"trait_definitions,omitempty"`
	CritiquePatterns []CritiquePattern `json:"critique_patterns" yaml:"critique_patterns,omitempty"`

	HistoricalContext string   `json:"historical_context,omitempty" yaml:"historical_context,omitempty"`
	RelatedParadigms  []string `json:"related_paradigms" yaml:"related_paradigms,omitempty"`

	PrimaryEngines    []string `json:"primary_engines" yaml:"primary_engines,omitempty"`
	CompatibleEngines []string `json:"compatible_engines" yaml:"compatible_engines,omitempty"`

	Status Status `json:"status" yaml:"status,omitempty"`

	ParentParadigmKey string                 `json:"parent_paradigm_key,omitempty" yaml:"parent_paradigm_key,omitempty"`
	BranchMetadata    map[string]interface{} `json:"branch_metadata,omitempty" yaml:"branch_metadata,omitempty"`
	BranchDepth       int                    `json:"branch_depth" yaml:"branch_depth,omitempty"`
	GenerationStatus  string                 `json:"generation_status" yaml:"generation_status,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Validate checks required fields and version syntax.
func (p *Paradigm) Validate() error {
	if p.ParadigmKey == "" {
		return fmt.Errorf("paradigm missing paradigm_key")
	}
	if p.ParadigmName == "" {
		return fmt.Errorf("paradigm %s missing paradigm_name", p.ParadigmKey)
	}
	if p.Description == "" {
		return fmt.Errorf("paradigm %s missing description", p.ParadigmKey)
	}
	if p.GuidingThinkers == "" {
		return fmt.Errorf("paradigm %s missing guiding_thinkers", p.ParadigmKey)
	}
	if p.Version != "" {
		if _, err := semver.NewVersion(p.Version); err != nil {
			return fmt.Errorf("paradigm %s has invalid version %q: %w", p.ParadigmKey, p.Version, err)
		}
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("paradigm %s has unknown status %q", p.ParadigmKey, p.Status)
	}
	return nil
}

// ApplyDefaults fills zero-value lifecycle fields.
func (p *Paradigm) ApplyDefaults() {
	if p.Version == "" {
		p.Version = "1.0.0"
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.GenerationStatus == "" {
		p.GenerationStatus = "complete"
	}
}

// BumpMinor advances the minor version, for whole-paradigm updates.
func (p *Paradigm) BumpMinor() error {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return fmt.Errorf("cannot bump version %q: %w", p.Version, err)
	}
	next := v.IncMinor()
	p.Version = next.String()
	return nil
}

// BumpPatch advances the patch version, for single-layer updates.
func (p *Paradigm) BumpPatch() error {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return fmt.Errorf("cannot bump version %q: %w", p.Version, err)
	}
	next := v.IncPatch()
	p.Version = next.String()
	return nil
}

// Layer returns one ontology layer by name.
func (p *Paradigm) Layer(name string) (interface{}, bool) {
	switch name {
	case "foundational":
		return p.Foundational, true
	case "structural":
		return p.Structural, true
	case "dynamic":
		return p.Dynamic, true
	case "explanatory":
		return p.Explanatory, true
	}
	return nil, false
}

// SetLayer replaces one ontology layer by name. The value must be the
// layer's own type.
func (p *Paradigm) SetLayer(name string, value interface{}) error {
	switch name {
	case "foundational":
		layer, ok := value.(FoundationalLayer)
		if !ok {
			return fmt.Errorf("layer %s expects FoundationalLayer", name)
		}
		p.Foundational = layer
	case "structural":
		layer, ok := value.(StructuralLayer)
		if !ok {
			return fmt.Errorf("layer %s expects StructuralLayer", name)
		}
		p.Structural = layer
	case "dynamic":
		layer, ok := value.(DynamicLayer)
		if !ok {
			return fmt.Errorf("layer %s expects DynamicLayer", name)
		}
		p.Dynamic = layer
	case "explanatory":
		layer, ok := value.(ExplanatoryLayer)
		if !ok {
			return fmt.Errorf("layer %s expects ExplanatoryLayer", name)
		}
		p.Explanatory = layer
	default:
		return fmt.Errorf("unknown layer %q, must be one of: foundational, structural, dynamic, explanatory", name)
	}
	return nil
}

// EngineCount is the number of engines associated with this paradigm.
func (p *Paradigm) EngineCount() int {
	return len(p.PrimaryEngines) + len(p.CompatibleEngines)
}

// Summary is the listing shape for paradigms.
type Summary struct {
	ParadigmKey       string   `json:"paradigm_key"`
	ParadigmName      string   `json:"paradigm_name"`
	Version           string   `json:"version"`
	Description       string   `json:"description"`
	GuidingThinkers   string   `json:"guiding_thinkers"`
	ActiveTraits      []string `json:"active_traits"`
	Status            Status   `json:"status"`
	EngineCount       int      `json:"engine_count"`
	ParentParadigmKey string   `json:"parent_paradigm_key,omitempty"`
	BranchDepth       int      `json:"branch_depth"`
	GenerationStatus  string   `json:"generation_status"`
}

// Summarize produces the listing shape, truncating long descriptions.
func (p *Paradigm) Summarize() Summary {
	desc := p.Description
	// Truncate on rune boundaries so multibyte text survives intact.
	if r := []rune(desc); len(r) > 200 {
		desc = string(r[:200]) + "..."
	}
	return Summary{
		ParadigmKey:       p.ParadigmKey,
		ParadigmName:      p.ParadigmName,
		Version:           p.Version,
		Description:       desc,
		GuidingThinkers:   p.GuidingThinkers,
		ActiveTraits:      p.ActiveTraits,
		Status:            p.Status,
		EngineCount:       p.EngineCount(),
		ParentParadigmKey: p.ParentParadigmKey,
		BranchDepth:       p.BranchDepth,
		GenerationStatus:  p.GenerationStatus,
	}
}

// Clone returns a deep copy.
func (p *Paradigm) Clone() *Paradigm {
	if p == nil {
		return nil
	}
	out := *p

	out.Foundational.Assumptions = append([]string(nil), p.Foundational.Assumptions...)
	out.Foundational.CoreTensions = append([]string(nil), p.Foundational.CoreTensions...)
	out.Foundational.ScopeConditions = append([]string(nil), p.Foundational.ScopeConditions...)
	out.Structural.PrimaryEntities = append([]string(nil), p.Structural.PrimaryEntities...)
	out.Structural.Relations = append([]string(nil), p.Structural.Relations...)
	out.Structural.LevelsOfAnalysis = append([]string(nil), p.Structural.LevelsOfAnalysis...)
	out.Dynamic.ChangeMechanisms = append([]string(nil), p.Dynamic.ChangeMechanisms...)
	out.Dynamic.TemporalPatterns = append([]string(nil), p.Dynamic.TemporalPatterns...)
	out.Dynamic.TransformationProcesses = append([]string(nil), p.Dynamic.TransformationProcesses...)
	out.Explanatory.KeyConcepts = append([]string(nil), p.Explanatory.KeyConcepts...)
	out.Explanatory.AnalyticalMethods = append([]string(nil), p.Explanatory.AnalyticalMethods...)
	out.Explanatory.ProblemDiagnosis = append([]string(nil), p.Explanatory.ProblemDiagnosis...)
	out.Explanatory.IdealState = append([]string(nil), p.Explanatory.IdealState...)

	out.ActiveTraits = append([]string(nil), p.ActiveTraits...)
	out.TraitDefinitions = make([]TraitDefinition, len(p.TraitDefinitions))
	for i, td := range p.TraitDefinitions {
		td.TraitItems = append([]string(nil), td.TraitItems...)
		out.TraitDefinitions[i] = td
	}
	out.CritiquePatterns = append([]CritiquePattern(nil), p.CritiquePatterns...)
	out.RelatedParadigms = append([]string(nil), p.RelatedParadigms...)
	out.PrimaryEngines = append([]string(nil), p.PrimaryEngines...)
	out.CompatibleEngines = append([]string(nil), p.CompatibleEngines...)

	if p.BranchMetadata != nil {
		out.BranchMetadata = make(map[string]interface{}, len(p.BranchMetadata))
		for k, v := range p.BranchMetadata {
			out.BranchMetadata[k] = v
		}
	}

	return &out
}
