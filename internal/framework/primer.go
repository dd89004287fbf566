// Package framework loads and serves framework primers: reusable blocks of
// analytical guidance (e.g. an argumentation framework) referenced by engine
// stage contexts and interpolated into composed prompts. Primers are read-only
// once loaded; the extension mechanism is replacing the definition files, not
// mutating primers at runtime.
package framework

import (
	"fmt"
	"strings"

	"engineroom/internal/ordmap"

	"gopkg.in/yaml.v3"
)

// SectionText is the body of one guidance section. Authors write either a
// single paragraph or a list of points; both forms are preserved.
type SectionText struct {
	Text  string
	Items []string
}

// UnmarshalYAML accepts a string or a sequence of strings.
func (s *SectionText) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&s.Text)
	case yaml.SequenceNode:
		return node.Decode(&s.Items)
	default:
		return fmt.Errorf("guidance section must be a string or a list of strings")
	}
}

// MarshalYAML emits the original authoring form.
func (s SectionText) MarshalYAML() (interface{}, error) {
	if len(s.Items) > 0 {
		return s.Items, nil
	}
	return s.Text, nil
}

// Lines returns the section body as individual lines.
func (s SectionText) Lines() []string {
	if len(s.Items) > 0 {
		return append([]string(nil), s.Items...)
	}
	if strings.TrimSpace(s.Text) == "" {
		return nil
	}
	return []string{s.Text}
}

// IsEmpty reports whether the section has no content.
func (s SectionText) IsEmpty() bool {
	return len(s.Items) == 0 && strings.TrimSpace(s.Text) == ""
}

// Primer is a named framework definition: a display name plus ordered guidance
// sections (e.g. core commitments, methodological guidance, vocabulary hints).
type Primer struct {
	Key         string                   `yaml:"key"`
	DisplayName string                   `yaml:"display_name"`
	Description string                   `yaml:"description,omitempty"`
	Sections    *ordmap.Map[SectionText] `yaml:"sections"`
}

// Validate checks that the primer is well formed.
func (p *Primer) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("primer missing key")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("primer %s missing display_name", p.Key)
	}
	if p.Sections != nil {
		var bad string
		p.Sections.Range(func(name string, body SectionText) bool {
			if strings.TrimSpace(name) == "" {
				bad = "unnamed section"
				return false
			}
			if body.IsEmpty() {
				bad = fmt.Sprintf("section %q is empty", name)
				return false
			}
			return true
		})
		if bad != "" {
			return fmt.Errorf("primer %s: %s", p.Key, bad)
		}
	}
	return nil
}

// SectionNames returns the section names in authoring order.
func (p *Primer) SectionNames() []string {
	if p.Sections == nil {
		return nil
	}
	return p.Sections.Keys()
}

// Section returns the named section body.
func (p *Primer) Section(name string) (SectionText, bool) {
	if p.Sections == nil {
		return SectionText{}, false
	}
	return p.Sections.Get(name)
}

// MergeGuidance folds the guidance sections of the given primers into a single
// ordered block. Sections keep the order they first appear in; when the same
// section name occurs in several primers, later bodies append after earlier
// ones rather than replacing them. Nil primers are skipped.
func MergeGuidance(primers ...*Primer) *ordmap.Map[[]string] {
	merged := ordmap.New[[]string]()
	for _, p := range primers {
		if p == nil || p.Sections == nil {
			continue
		}
		p.Sections.Range(func(name string, body SectionText) bool {
			lines, _ := merged.Get(name)
			merged.Set(name, append(lines, body.Lines()...))
			return true
		})
	}
	return merged
}
