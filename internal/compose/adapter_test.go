package compose

import (
	"testing"

	"engineroom/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapter(t *testing.T, opts ...AdapterOption) *Adapter {
	t.Helper()
	return NewAdapter(testComposer(t), opts...)
}

func legacyEngine() *engine.Engine {
	return &engine.Engine{
		EngineKey:        "legacy-claims",
		Version:          2,
		EngineName:       "Legacy Claims",
		ExtractionPrompt: "Extract all claims.",
		CurationPrompt:   "Merge duplicate claims.",
	}
}

func migratedEngine() *engine.Engine {
	return &engine.Engine{
		EngineKey:        "argument-structure",
		Version:          4,
		EngineName:       "Argument Structure",
		ExtractionPrompt: "Old static extraction prompt.",
		StageContext:     extractionContext(),
	}
}

func TestGetPromptLegacyVerbatim(t *testing.T) {
	a := testAdapter(t)
	e := legacyEngine()

	for _, audience := range engine.Audiences {
		res, err := a.GetPrompt(e, engine.StageExtraction, audience)
		require.NoError(t, err)
		assert.Equal(t, "Extract all claims.", res.Prompt, "legacy prompt byte-for-byte, audience %s", audience)
		assert.False(t, res.Composed)
		assert.False(t, res.Skipped)
		assert.Empty(t, res.Error)
		assert.Equal(t, SourceLegacy, res.Source)
		assert.Equal(t, audience, res.Audience)
		assert.True(t, res.OK())
	}
}

func TestGetPromptCompositionWinsOverLegacy(t *testing.T) {
	a := testAdapter(t)
	e := migratedEngine()

	res, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
	require.NoError(t, err)
	assert.True(t, res.Composed)
	assert.Equal(t, SourceComposed, res.Source)
	assert.NotContains(t, res.Prompt, "Old static extraction prompt.")
	assert.Equal(t, "Toulmin Argumentation Model", res.FrameworkUsed)
}

func TestGetPromptNotAvailable(t *testing.T) {
	a := testAdapter(t)

	t.Run("stage never authored", func(t *testing.T) {
		res, err := a.GetPrompt(legacyEngine(), engine.StageConcretization, engine.AudienceAnalyst)
		require.ErrorIs(t, err, ErrNotAvailable)
		require.NotNil(t, res)
		assert.Equal(t, SourceNone, res.Source)
		assert.Empty(t, res.Prompt)
		assert.Empty(t, res.Error, "not-available is not a composition error")
		assert.False(t, res.OK())
	})

	t.Run("engine with nothing at all", func(t *testing.T) {
		bare := &engine.Engine{EngineKey: "bare", Version: 1}
		_, err := a.GetPrompt(bare, engine.StageExtraction, engine.AudienceAnalyst)
		assert.ErrorIs(t, err, ErrNotAvailable)
	})
}

func TestGetPromptLegacyFallbackDisabled(t *testing.T) {
	a := testAdapter(t, WithLegacyFallback(false))

	_, err := a.GetPrompt(legacyEngine(), engine.StageExtraction, engine.AudienceAnalyst)
	assert.ErrorIs(t, err, ErrNotAvailable)

	t.Run("composition path unaffected", func(t *testing.T) {
		res, err := a.GetPrompt(migratedEngine(), engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		assert.True(t, res.Composed)
	})
}

func TestGetPromptSkippedConcretization(t *testing.T) {
	e := migratedEngine()
	e.StageContext.SkipConcretization = true

	res, err := testAdapter(t).GetPrompt(e, engine.StageConcretization, engine.AudienceAnalyst)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Composed)
	assert.Empty(t, res.Prompt)
	assert.True(t, res.OK())
}

func TestGetPromptInvalidArguments(t *testing.T) {
	a := testAdapter(t)

	_, err := a.GetPrompt(nil, engine.StageExtraction, engine.AudienceAnalyst)
	assert.Error(t, err)

	_, err = a.GetPrompt(legacyEngine(), "distillation", engine.AudienceAnalyst)
	assert.Error(t, err)
}

func TestGetPromptCaching(t *testing.T) {
	a := testAdapter(t, WithCache(16))
	e := migratedEngine()

	first, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
	require.NoError(t, err)
	require.True(t, first.Composed)
	assert.Equal(t, 1, a.CacheLen())

	t.Run("hit returns an equal result", func(t *testing.T) {
		again, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	})

	t.Run("callers cannot poison the cache", func(t *testing.T) {
		res, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		res.Prompt = "tampered"

		clean, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		assert.Equal(t, first.Prompt, clean.Prompt)
	})

	t.Run("audience is part of the key", func(t *testing.T) {
		_, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceExecutive)
		require.NoError(t, err)
		assert.Equal(t, 2, a.CacheLen())
	})

	t.Run("version bump misses", func(t *testing.T) {
		bumped := e.Clone()
		bumped.Version = e.Version + 1
		_, err := a.GetPrompt(bumped, engine.StageExtraction, engine.AudienceAnalyst)
		require.NoError(t, err)
		assert.Equal(t, 3, a.CacheLen())
	})

	t.Run("invalidate drops everything", func(t *testing.T) {
		a.InvalidateCache()
		assert.Equal(t, 0, a.CacheLen())
	})
}

func TestGetPromptCacheDisabledByDefault(t *testing.T) {
	a := testAdapter(t)
	e := migratedEngine()

	_, err := a.GetPrompt(e, engine.StageExtraction, engine.AudienceAnalyst)
	require.NoError(t, err)
	assert.Equal(t, 0, a.CacheLen())
}
