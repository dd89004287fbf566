package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSectionTextForms(t *testing.T) {
	t.Run("scalar form", func(t *testing.T) {
		var s SectionText
		require.NoError(t, yaml.Unmarshal([]byte(`"Track commitments as they accrue."`), &s))
		assert.Equal(t, "Track commitments as they accrue.", s.Text)
		assert.Empty(t, s.Items)
		assert.Equal(t, []string{"Track commitments as they accrue."}, s.Lines())
		assert.False(t, s.IsEmpty())
	})

	t.Run("list form", func(t *testing.T) {
		var s SectionText
		require.NoError(t, yaml.Unmarshal([]byte("- first point\n- second point\n"), &s))
		assert.Equal(t, []string{"first point", "second point"}, s.Items)
		assert.Equal(t, []string{"first point", "second point"}, s.Lines())
		assert.False(t, s.IsEmpty())
	})

	t.Run("mapping form is rejected", func(t *testing.T) {
		var s SectionText
		err := yaml.Unmarshal([]byte("nested:\n  key: value\n"), &s)
		assert.Error(t, err)
	})

	t.Run("empty section", func(t *testing.T) {
		var s SectionText
		assert.True(t, s.IsEmpty())
		assert.Nil(t, s.Lines())

		s.Text = "   "
		assert.True(t, s.IsEmpty())
	})

	t.Run("marshal keeps authoring form", func(t *testing.T) {
		list := SectionText{Items: []string{"a", "b"}}
		out, err := yaml.Marshal(list)
		require.NoError(t, err)
		assert.Equal(t, "- a\n- b\n", string(out))

		scalar := SectionText{Text: "one paragraph"}
		out, err = yaml.Marshal(scalar)
		require.NoError(t, err)
		assert.Equal(t, "one paragraph\n", string(out))
	})
}

func TestPrimerParseAndValidate(t *testing.T) {
	t.Run("well formed primer", func(t *testing.T) {
		doc := `
key: toulmin
display_name: Toulmin Argumentation Model
sections:
  core_commitments:
    - "Claims need grounds."
  vocabulary_hints:
    - "claim: the conclusion"
`
		var p Primer
		require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
		require.NoError(t, p.Validate())

		assert.Equal(t, "toulmin", p.Key)
		assert.Equal(t, "Toulmin Argumentation Model", p.DisplayName)
		assert.Equal(t, []string{"core_commitments", "vocabulary_hints"}, p.SectionNames())

		body, ok := p.Section("core_commitments")
		require.True(t, ok)
		assert.Equal(t, []string{"Claims need grounds."}, body.Lines())
	})

	t.Run("missing key", func(t *testing.T) {
		p := Primer{DisplayName: "Nameless"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing display name", func(t *testing.T) {
		p := Primer{Key: "ghost"}
		assert.Error(t, p.Validate())
	})

	t.Run("empty section body", func(t *testing.T) {
		var p Primer
		doc := "key: x\ndisplay_name: X\nsections:\n  hollow: \"\"\n"
		require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
		assert.Error(t, p.Validate())
	})
}

func TestMergeGuidance(t *testing.T) {
	primary := mustParsePrimer(t, `
key: brandomian
display_name: Brandomian Scorekeeping
sections:
  core_commitments:
    - "Assertions are moves."
  methodological_guidance:
    - "Keep a scorebook."
`)
	extra := mustParsePrimer(t, `
key: toulmin
display_name: Toulmin Argumentation Model
sections:
  core_commitments:
    - "Claims need grounds."
  vocabulary_hints:
    - "warrant: the inference license"
`)

	t.Run("primary sections come first, later bodies append", func(t *testing.T) {
		merged := MergeGuidance(primary, extra)

		assert.Equal(t, []string{"core_commitments", "methodological_guidance", "vocabulary_hints"}, merged.Keys())

		core, ok := merged.Get("core_commitments")
		require.True(t, ok)
		assert.Equal(t, []string{"Assertions are moves.", "Claims need grounds."}, core,
			"overlapping sections must append, not overwrite")

		vocab, _ := merged.Get("vocabulary_hints")
		assert.Equal(t, []string{"warrant: the inference license"}, vocab)
	})

	t.Run("order of primers changes section order", func(t *testing.T) {
		merged := MergeGuidance(extra, primary)
		assert.Equal(t, []string{"core_commitments", "vocabulary_hints", "methodological_guidance"}, merged.Keys())

		core, _ := merged.Get("core_commitments")
		assert.Equal(t, []string{"Claims need grounds.", "Assertions are moves."}, core)
	})

	t.Run("nil primers are skipped", func(t *testing.T) {
		merged := MergeGuidance(nil, primary, nil)
		assert.Equal(t, []string{"core_commitments", "methodological_guidance"}, merged.Keys())
	})

	t.Run("no primers yields empty block", func(t *testing.T) {
		merged := MergeGuidance()
		assert.Equal(t, 0, merged.Len())
	})
}

func mustParsePrimer(t *testing.T, doc string) *Primer {
	t.Helper()
	var p Primer
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
	require.NoError(t, p.Validate())
	return &p
}
