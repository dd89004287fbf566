package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleEngineYAML = `engine_key: causal-chain
engine_name: Causal Chain
description: Traces cause-and-effect sequences through a narrative.
category: causal
kind: relational
stage_context:
  framework_key: dennett
  extraction:
    analysis_type: causal link
    core_question: What causes what, according to this document?
    key_fields:
      cause: The originating event
      effect: The resulting event
      mechanism: How the cause produces the effect
`

const engineArrayYAML = `- engine_key: timeline
  engine_name: Timeline
  description: Orders events chronologically.
  category: temporal
- engine_key: entity-map
  engine_name: Entity Map
  description: Catalogs named actors and their roles.
  category: network
  kind: extraction
`

const singleEngineJSON = `{
  "engine_key": "stakeholder-positions",
  "engine_name": "Stakeholder Positions",
  "description": "Maps who wants what and why.",
  "category": "sociopolitical",
  "stage_context": {
    "framework_key": "brandomian",
    "extraction": {
      "analysis_type": "position",
      "core_question": "What does each stakeholder commit to?",
      "key_fields": {
        "stakeholder": "The actor taking the position",
        "position": "What they assert or demand",
        "interest": "The underlying interest served"
      }
    }
  }
}`

func TestParseDefinitions(t *testing.T) {
	t.Run("single document", func(t *testing.T) {
		engines, err := ParseDefinitions([]byte(singleEngineYAML), "inline")
		require.NoError(t, err)
		require.Len(t, engines, 1)

		e := engines[0]
		assert.Equal(t, "causal-chain", e.EngineKey)
		assert.Equal(t, KindRelational, e.Kind)
		assert.Equal(t, StatusActive, e.Status, "defaults applied")
		assert.Equal(t, 1, e.Version)
		require.True(t, e.HasStageContext())
		assert.Equal(t, []string{"cause", "effect", "mechanism"},
			e.StageContext.Extraction.KeyFields.Keys())
	})

	t.Run("array document", func(t *testing.T) {
		engines, err := ParseDefinitions([]byte(engineArrayYAML), "inline")
		require.NoError(t, err)
		require.Len(t, engines, 2)
		assert.Equal(t, "timeline", engines[0].EngineKey)
		assert.Equal(t, KindPrimitive, engines[0].Kind)
		assert.Equal(t, KindExtraction, engines[1].Kind)
	})

	t.Run("invalid entries are skipped, valid kept", func(t *testing.T) {
		mixed := `- engine_key: ok
  engine_name: OK
  description: Fine.
  category: argument
- engine_key: missing-name
  description: No name, should be dropped.
  category: argument
`
		engines, err := ParseDefinitions([]byte(mixed), "inline")
		require.NoError(t, err)
		require.Len(t, engines, 1)
		assert.Equal(t, "ok", engines[0].EngineKey)
	})

	t.Run("unparseable input", func(t *testing.T) {
		_, err := ParseDefinitions([]byte("engine_key: [unclosed"), "inline")
		assert.Error(t, err)
	})
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"causal.yaml":      singleEngineYAML,
		"pair.yml":         engineArrayYAML,
		"stakeholder.json": singleEngineJSON,
		"notes.txt":        "not a definition",
		"broken.yaml":      "engine_key: [unclosed",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}

	engines, err := LoadDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, engines, 4, "broken file skipped, txt ignored")

	byKey := map[string]*Engine{}
	for _, e := range engines {
		byKey[e.EngineKey] = e
	}
	require.Contains(t, byKey, "stakeholder-positions")

	// JSON definitions keep author field order just like YAML ones
	e := byKey["stakeholder-positions"]
	require.True(t, e.HasStageContext())
	assert.Equal(t, []string{"stakeholder", "position", "interest"},
		e.StageContext.Extraction.KeyFields.Keys())
}

func TestLoadDefinitionsMissingDir(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
