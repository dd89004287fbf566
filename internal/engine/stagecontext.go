// Package engine defines analytical engine definitions and the stage context
// model that parameterizes prompt composition. An engine is a versioned
// recipe (prompts plus output schema) consumed by an external analysis
// pipeline; its stage_context holds the structured per-stage fields that the
// composer renders into concrete prompts.
package engine

import (
	"fmt"

	"engineroom/internal/ordmap"
)

// Stage names one of the three prompt-generation phases.
type Stage string

const (
	StageExtraction     Stage = "extraction"
	StageCuration       Stage = "curation"
	StageConcretization Stage = "concretization"
)

// Stages lists all stages in pipeline order.
var Stages = []Stage{StageExtraction, StageCuration, StageConcretization}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageExtraction, StageCuration, StageConcretization:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q (valid: extraction, curation, concretization)", s)
}

// Valid reports whether the stage is a known stage name.
func (s Stage) Valid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

// Audience is the target reader calibration tag controlling vocabulary
// substitution.
type Audience string

const (
	AudienceResearcher Audience = "researcher"
	AudienceAnalyst    Audience = "analyst"
	AudienceExecutive  Audience = "executive"
	AudienceActivist   Audience = "activist"
)

// Audiences lists all audience tags.
var Audiences = []Audience{AudienceResearcher, AudienceAnalyst, AudienceExecutive, AudienceActivist}

// ParseAudience validates an audience tag. The empty string resolves to the
// analyst default.
func ParseAudience(s string) (Audience, error) {
	if s == "" {
		return AudienceAnalyst, nil
	}
	switch Audience(s) {
	case AudienceResearcher, AudienceAnalyst, AudienceExecutive, AudienceActivist:
		return Audience(s), nil
	}
	return "", fmt.Errorf("unknown audience %q (valid: researcher, analyst, executive, activist)", s)
}

// Valid reports whether the audience is a known tag.
func (a Audience) Valid() bool {
	return a == AudienceResearcher || a == AudienceAnalyst || a == AudienceExecutive || a == AudienceActivist
}

// ExtractionContext parameterizes the extraction stage template.
type ExtractionContext struct {
	AnalysisType        string              `json:"analysis_type" yaml:"analysis_type"`
	AnalysisTypePlural  string              `json:"analysis_type_plural" yaml:"analysis_type_plural"`
	CoreQuestion        string              `json:"core_question" yaml:"core_question"`
	ExtractionSteps     []string            `json:"extraction_steps" yaml:"extraction_steps"`
	KeyFields           *ordmap.Map[string] `json:"key_fields,omitempty" yaml:"key_fields,omitempty"`
	IDField             string              `json:"id_field" yaml:"id_field"`
	KeyRelationships    []string            `json:"key_relationships,omitempty" yaml:"key_relationships,omitempty"`
	SpecialInstructions string              `json:"special_instructions,omitempty" yaml:"special_instructions,omitempty"`
}

// CurationContext parameterizes the curation stage template.
type CurationContext struct {
	ItemType            string   `json:"item_type" yaml:"item_type"`
	ItemTypePlural      string   `json:"item_type_plural" yaml:"item_type_plural"`
	ConsolidationRules  []string `json:"consolidation_rules,omitempty" yaml:"consolidation_rules,omitempty"`
	CrossDocPatterns    []string `json:"cross_doc_patterns,omitempty" yaml:"cross_doc_patterns,omitempty"`
	SynthesisOutputs    []string `json:"synthesis_outputs,omitempty" yaml:"synthesis_outputs,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty" yaml:"special_instructions,omitempty"`
}

// IDExample demonstrates one abstract-ID-to-concrete-name transformation.
type IDExample struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ConcretizationContext parameterizes the concretization stage template.
// The whole stage is skippable via StageContext.SkipConcretization.
type ConcretizationContext struct {
	IDExamples                []IDExample `json:"id_examples,omitempty" yaml:"id_examples,omitempty"`
	NamingGuidance            string      `json:"naming_guidance,omitempty" yaml:"naming_guidance,omitempty"`
	RecommendedTableTypes     []string    `json:"recommended_table_types,omitempty" yaml:"recommended_table_types,omitempty"`
	RecommendedVisualPatterns []string    `json:"recommended_visual_patterns,omitempty" yaml:"recommended_visual_patterns,omitempty"`
}

// VocabularyTable maps audience tags to term substitution tables. Both levels
// preserve insertion order; the inner order is what templates render.
type VocabularyTable = ordmap.Map[*ordmap.Map[string]]

// StageContext is the versioned configuration object that parameterizes
// template-based prompt composition for one engine. A nil StageContext on an
// engine means the engine still uses legacy static prompts.
type StageContext struct {
	// FrameworkKey optionally references the primary framework primer.
	// Empty means the engine uses no framework.
	FrameworkKey string `json:"framework_key,omitempty" yaml:"framework_key,omitempty"`

	// AdditionalFrameworks are layered on top of the primary one, in order.
	AdditionalFrameworks []string `json:"additional_frameworks,omitempty" yaml:"additional_frameworks,omitempty"`

	Extraction     *ExtractionContext     `json:"extraction,omitempty" yaml:"extraction,omitempty"`
	Curation       *CurationContext       `json:"curation,omitempty" yaml:"curation,omitempty"`
	Concretization *ConcretizationContext `json:"concretization,omitempty" yaml:"concretization,omitempty"`

	// AudienceVocabulary maps audience tag -> term -> audience phrasing.
	AudienceVocabulary *VocabularyTable `json:"audience_vocabulary,omitempty" yaml:"audience_vocabulary,omitempty"`

	// SkipConcretization short-circuits concretization composition with a
	// "not applicable" result instead of attempting to render.
	SkipConcretization bool `json:"skip_concretization,omitempty" yaml:"skip_concretization,omitempty"`
}

// HasStage reports whether the sub-context for the given stage is present.
func (sc *StageContext) HasStage(stage Stage) bool {
	if sc == nil {
		return false
	}
	switch stage {
	case StageExtraction:
		return sc.Extraction != nil
	case StageCuration:
		return sc.Curation != nil
	case StageConcretization:
		return sc.Concretization != nil
	}
	return false
}

// Vocabulary returns the substitution table for an audience tag.
func (sc *StageContext) Vocabulary(audience Audience) (*ordmap.Map[string], bool) {
	if sc == nil || sc.AudienceVocabulary == nil {
		return nil, false
	}
	vocab, ok := sc.AudienceVocabulary.Get(string(audience))
	if !ok || vocab == nil {
		return nil, false
	}
	return vocab, true
}

// FrameworkKeys returns the primary key (if any) followed by the additional
// framework keys, in resolution order.
func (sc *StageContext) FrameworkKeys() []string {
	if sc == nil {
		return nil
	}
	var keys []string
	if sc.FrameworkKey != "" {
		keys = append(keys, sc.FrameworkKey)
	}
	keys = append(keys, sc.AdditionalFrameworks...)
	return keys
}

// Validate checks structural soundness. It does not verify that referenced
// framework keys resolve; missing frameworks degrade gracefully at
// composition time instead.
func (sc *StageContext) Validate() error {
	if sc == nil {
		return nil
	}
	for i, k := range sc.AdditionalFrameworks {
		if k == "" {
			return fmt.Errorf("additional_frameworks[%d] is empty", i)
		}
	}
	if sc.AudienceVocabulary != nil {
		var bad string
		sc.AudienceVocabulary.Range(func(tag string, _ *ordmap.Map[string]) bool {
			if !Audience(tag).Valid() {
				bad = tag
				return false
			}
			return true
		})
		if bad != "" {
			return fmt.Errorf("audience_vocabulary has unknown audience tag %q", bad)
		}
	}
	if sc.Extraction != nil {
		if sc.Extraction.AnalysisType == "" {
			return fmt.Errorf("extraction.analysis_type is required")
		}
		if sc.Extraction.CoreQuestion == "" {
			return fmt.Errorf("extraction.core_question is required")
		}
	}
	if sc.Curation != nil && sc.Curation.ItemType == "" {
		return fmt.Errorf("curation.item_type is required")
	}
	return nil
}

// Clone returns a deep copy.
func (sc *StageContext) Clone() *StageContext {
	if sc == nil {
		return nil
	}
	out := &StageContext{
		FrameworkKey:         sc.FrameworkKey,
		AdditionalFrameworks: append([]string(nil), sc.AdditionalFrameworks...),
		SkipConcretization:   sc.SkipConcretization,
	}
	if sc.Extraction != nil {
		ec := *sc.Extraction
		ec.ExtractionSteps = append([]string(nil), sc.Extraction.ExtractionSteps...)
		ec.KeyRelationships = append([]string(nil), sc.Extraction.KeyRelationships...)
		ec.KeyFields = sc.Extraction.KeyFields.Clone()
		out.Extraction = &ec
	}
	if sc.Curation != nil {
		cc := *sc.Curation
		cc.ConsolidationRules = append([]string(nil), sc.Curation.ConsolidationRules...)
		cc.CrossDocPatterns = append([]string(nil), sc.Curation.CrossDocPatterns...)
		cc.SynthesisOutputs = append([]string(nil), sc.Curation.SynthesisOutputs...)
		out.Curation = &cc
	}
	if sc.Concretization != nil {
		kc := *sc.Concretization
		kc.IDExamples = append([]IDExample(nil), sc.Concretization.IDExamples...)
		kc.RecommendedTableTypes = append([]string(nil), sc.Concretization.RecommendedTableTypes...)
		kc.RecommendedVisualPatterns = append([]string(nil), sc.Concretization.RecommendedVisualPatterns...)
		out.Concretization = &kc
	}
	if sc.AudienceVocabulary != nil {
		vocab := ordmap.New[*ordmap.Map[string]]()
		sc.AudienceVocabulary.Range(func(tag string, table *ordmap.Map[string]) bool {
			vocab.Set(tag, table.Clone())
			return true
		})
		out.AudienceVocabulary = vocab
	}
	return out
}
