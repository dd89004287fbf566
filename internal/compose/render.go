package compose

import (
	"engineroom/internal/engine"
	"engineroom/internal/ordmap"
)

type vocabTable = ordmap.Map[string]

// GuidanceSection is one merged framework guidance section. Templates range
// over a slice of these so section order survives rendering; a Go map would
// iterate in random order and break byte-for-byte determinism.
type GuidanceSection struct {
	Name  string
	Lines []string
}

// VocabEntry is one audience vocabulary substitution.
type VocabEntry struct {
	Term     string
	Phrasing string
}

// FieldDoc documents one output field in author order.
type FieldDoc struct {
	Name        string
	Description string
}

func guidanceSections(merged *ordmap.Map[[]string]) []GuidanceSection {
	if merged.Len() == 0 {
		return nil
	}
	out := make([]GuidanceSection, 0, merged.Len())
	merged.Range(func(name string, lines []string) bool {
		out = append(out, GuidanceSection{Name: name, Lines: lines})
		return true
	})
	return out
}

func vocabEntries(table *vocabTable) []VocabEntry {
	if table.Len() == 0 {
		return nil
	}
	out := make([]VocabEntry, 0, table.Len())
	table.Range(func(term, phrasing string) bool {
		out = append(out, VocabEntry{Term: term, Phrasing: phrasing})
		return true
	})
	return out
}

func fieldDocs(m *ordmap.Map[string]) []FieldDoc {
	if m.Len() == 0 {
		return nil
	}
	out := make([]FieldDoc, 0, m.Len())
	m.Range(func(name, desc string) bool {
		out = append(out, FieldDoc{Name: name, Description: desc})
		return true
	})
	return out
}

func plural(explicit, singular string) string {
	if explicit != "" {
		return explicit
	}
	if singular == "" {
		return ""
	}
	return singular + "s"
}

// renderData builds the template context for one stage. Every key a stage
// template may reference is always present, so missingkey=error only fires
// on genuine template/schema drift.
func renderData(stage engine.Stage, sc *engine.StageContext, guidance []GuidanceSection, vocab []VocabEntry, audience engine.Audience) map[string]interface{} {
	data := map[string]interface{}{
		"framework_guidance": guidance,
		"vocabulary":         vocab,
		"audience":           string(audience),
	}

	switch stage {
	case engine.StageExtraction:
		ec := sc.Extraction
		data["analysis_type"] = ec.AnalysisType
		data["analysis_type_plural"] = plural(ec.AnalysisTypePlural, ec.AnalysisType)
		data["core_question"] = ec.CoreQuestion
		data["extraction_steps"] = ec.ExtractionSteps
		data["key_fields"] = fieldDocs(ec.KeyFields)
		data["id_field"] = ec.IDField
		data["key_relationships"] = ec.KeyRelationships
		data["special_instructions"] = ec.SpecialInstructions
	case engine.StageCuration:
		cc := sc.Curation
		data["item_type"] = cc.ItemType
		data["item_type_plural"] = plural(cc.ItemTypePlural, cc.ItemType)
		data["consolidation_rules"] = cc.ConsolidationRules
		data["cross_doc_patterns"] = cc.CrossDocPatterns
		data["synthesis_outputs"] = cc.SynthesisOutputs
		data["special_instructions"] = cc.SpecialInstructions
	case engine.StageConcretization:
		kc := sc.Concretization
		data["id_examples"] = kc.IDExamples
		data["naming_guidance"] = kc.NamingGuidance
		data["recommended_table_types"] = kc.RecommendedTableTypes
		data["recommended_visual_patterns"] = kc.RecommendedVisualPatterns
	}

	return data
}
