package paradigm

import (
	"fmt"
	"strings"
)

// GeneratePrimer renders the paradigm as LLM-ready markdown. Section
// headings are fixed; empty sub-lists are omitted rather than rendered as
// empty headings.
func (p *Paradigm) GeneratePrimer() string {
	var sections []string

	sections = append(sections, fmt.Sprintf("# %s Paradigm", p.ParadigmName))
	sections = append(sections, fmt.Sprintf("\n%s\n", p.Description))
	sections = append(sections, fmt.Sprintf("**Guiding Thinkers**: %s\n", p.GuidingThinkers))

	sections = append(sections, "## Foundational Layer")
	sections = appendList(sections, "\n### Core Assumptions", p.Foundational.Assumptions)
	sections = appendList(sections, "\n### Core Tensions", p.Foundational.CoreTensions)

	sections = append(sections, "\n## Structural Layer")
	sections = appendList(sections, "\n### Primary Entities", p.Structural.PrimaryEntities)
	sections = appendList(sections, "\n### Relations", p.Structural.Relations)

	sections = append(sections, "\n## Dynamic Layer")
	sections = appendList(sections, "\n### Change Mechanisms", p.Dynamic.ChangeMechanisms)

	sections = append(sections, "\n## Explanatory Layer")
	sections = appendList(sections, "\n### Key Concepts", p.Explanatory.KeyConcepts)
	sections = appendList(sections, "\n### Analytical Methods", p.Explanatory.AnalyticalMethods)

	return strings.Join(sections, "\n")
}

func appendList(sections []string, heading string, items []string) []string {
	if len(items) == 0 {
		return sections
	}
	sections = append(sections, heading)
	for _, item := range items {
		sections = append(sections, "- "+item)
	}
	return sections
}
