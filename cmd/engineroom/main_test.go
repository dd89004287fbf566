package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"engineroom/internal/engine"
	"engineroom/internal/ordmap"
	"engineroom/internal/propagation"
	"engineroom/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a ver...", truncate("a very long string", 8))

	t.Run("multibyte", func(t *testing.T) {
		got := truncate("Überlegenheitsgefühl", 8)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, "Überl...", got)
		assert.True(t, utf8.ValidString(truncate("ééé", 2)))
	})
}

func TestOrNone(t *testing.T) {
	assert.Equal(t, "analysis", orNone("analysis"))
	assert.NotEmpty(t, orNone(""))
}

func TestStageAndAudienceCycling(t *testing.T) {
	assert.Equal(t, engine.StageCuration, nextStage(engine.StageExtraction))
	assert.Equal(t, engine.StageConcretization, nextStage(engine.StageCuration))
	assert.Equal(t, engine.StageExtraction, nextStage(engine.StageConcretization))

	seen := map[engine.Audience]bool{}
	a := engine.AudienceAnalyst
	for range engine.Audiences {
		seen[a] = true
		a = nextAudience(a)
	}
	assert.Len(t, seen, len(engine.Audiences), "cycling should visit every audience")
	assert.Equal(t, engine.AudienceAnalyst, a, "cycling should wrap around")
}

func TestFindChangeByPrefix(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	defer s.Close()

	e := &engine.Engine{
		EngineKey:        "claim_extractor",
		EngineName:       "Claim Extractor",
		Description:      "Extracts claims",
		Category:         "epistemology",
		ExtractionPrompt: "Find the claims.",
	}
	require.NoError(t, s.CreateEngine(e, "tester", ""))

	recorder := propagation.NewRecorder(s)
	change, err := recorder.Record(propagation.ConstructEngine, e.EngineKey,
		propagation.ChangeCreate, nil, e, "tester", "")
	require.NoError(t, err)

	t.Run("full ID", func(t *testing.T) {
		found, err := findChange(s, change.ID)
		require.NoError(t, err)
		assert.Equal(t, change.ID, found.ID)
	})

	t.Run("prefix", func(t *testing.T) {
		found, err := findChange(s, change.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, change.ID, found.ID)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := findChange(s, "deadbeef")
		assert.Error(t, err)
	})
}

func TestOpenConsoleWatchesAssets(t *testing.T) {
	root := t.TempDir()
	assetsDir := filepath.Join(root, "assets")
	templatesDir := filepath.Join(assetsDir, "templates")
	require.NoError(t, os.MkdirAll(templatesDir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(assetsDir, "primers"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "extraction.tmpl"),
		[]byte("V1 {{.analysis_type}}\n"), 0644))

	cfgPath := filepath.Join(root, "config.yaml")
	cfgYAML := fmt.Sprintf(`data:
  dir: %s
  database_path: %s
assets:
  dir: %s
  watch: true
  watch_debounce: 50ms
compose:
  cache_size: 8
  default_audience: analyst
  legacy_fallback: true
`, filepath.Join(root, "data"), filepath.Join(root, "data", "console.db"), assetsDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	origConfigPath := configPath
	configPath = cfgPath
	defer func() { configPath = origConfigPath }()

	c, err := openConsole()
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.stopWatch, "assets.watch should start the override watchers")

	e := &engine.Engine{
		EngineKey:  "argument-structure",
		Version:    1,
		EngineName: "Argument Structure",
		StageContext: &engine.StageContext{
			Extraction: &engine.ExtractionContext{
				AnalysisType:       "argument",
				AnalysisTypePlural: "arguments",
				CoreQuestion:       "What claims does this document advance?",
				ExtractionSteps:    []string{"Identify claim"},
				KeyFields:          ordmap.FromPairs[string]("claim_text", "The claim as stated"),
				IDField:            "argument_id",
			},
		},
	}

	res, err := c.adapter.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
	require.NoError(t, err)
	require.Equal(t, "V1 argument\n", res.Prompt)
	require.Equal(t, 1, c.adapter.CacheLen(), "composed prompt should be memoized")

	// Rewriting the override must reach a running console without a version
	// bump: the watcher reloads the template and purges the memoized prompt.
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "extraction.tmpl"),
		[]byte("V2 {{.analysis_type}}\n"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		res, err := c.adapter.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		if res.Prompt == "V2 argument\n" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("template rewrite never reached the adapter, still serving %q", res.Prompt)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestLoadConstruct(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	defer s.Close()

	e := &engine.Engine{
		EngineKey:        "stakeholder_mapper",
		EngineName:       "Stakeholder Mapper",
		Description:      "Maps stakeholders",
		Category:         "sociopolitical",
		ExtractionPrompt: "Find the stakeholders.",
	}
	require.NoError(t, s.CreateEngine(e, "tester", ""))

	got, err := loadConstruct(s, propagation.ConstructEngine, "stakeholder_mapper")
	require.NoError(t, err)
	loaded, ok := got.(*engine.Engine)
	require.True(t, ok)
	assert.Equal(t, "stakeholder_mapper", loaded.EngineKey)

	_, err = loadConstruct(s, propagation.ConstructType("grid"), "anything")
	assert.Error(t, err)
}
