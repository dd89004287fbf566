package compose

import (
	"fmt"

	"engineroom/internal/engine"
	"engineroom/internal/logging"
)

// Adapter answers "give me the prompt for stage X of engine E, phrased for
// audience Y" regardless of how the engine is authored. Engines with a stage
// context always compose; older engines fall back to their stored static
// prompts. Once an engine gains a stage context, composition wins even if
// the legacy fields are still around for rollback.
type Adapter struct {
	composer       *Composer
	legacyFallback bool
	cache          *promptCache
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLegacyFallback controls whether engines without a stage context may
// serve their stored static prompts. Enabled by default; disabling it turns
// un-migrated engines into "not available".
func WithLegacyFallback(enabled bool) AdapterOption {
	return func(a *Adapter) { a.legacyFallback = enabled }
}

// WithCache memoizes successful compositions in an LRU keyed by engine key,
// engine version, stage, and audience. A size of zero or less disables it.
func WithCache(size int) AdapterOption {
	return func(a *Adapter) {
		if size <= 0 {
			return
		}
		cache, err := newPromptCache(size)
		if err != nil {
			logging.ComposeWarn("Prompt cache disabled: %v", err)
			return
		}
		a.cache = cache
	}
}

// NewAdapter wraps a composer with legacy fallback and optional caching.
func NewAdapter(composer *Composer, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		composer:       composer,
		legacyFallback: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetPrompt returns the prompt for one stage of one engine.
//
// The returned error is non-nil only for invalid arguments or when the
// engine has nothing to serve (ErrNotAvailable); composition failures are
// reported inside the Result, not as errors.
func (a *Adapter) GetPrompt(e *engine.Engine, stage engine.Stage, audience engine.Audience) (*Result, error) {
	if e == nil {
		return nil, fmt.Errorf("nil engine")
	}
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	if audience == "" {
		audience = a.composer.defaultAudience
	}

	if e.HasStageContext() {
		if a.cache != nil {
			if res, ok := a.cache.get(e, stage, audience); ok {
				logging.ComposeDebug("Prompt cache hit for %s/%s/%s", e.EngineKey, stage, audience)
				return res, nil
			}
		}
		res := a.composer.Compose(e.EngineKey, stage, e.StageContext, audience)
		if a.cache != nil && res.OK() {
			a.cache.add(e, stage, audience, res)
		}
		return res, nil
	}

	if legacy := e.LegacyPrompt(stage); a.legacyFallback && legacy != "" {
		logging.Compose("Serving legacy %s prompt for %s", stage, e.EngineKey)
		logging.Audit().ComposeFellBack(e.EngineKey, string(stage))
		return &Result{
			EngineKey:  e.EngineKey,
			PromptType: stage,
			Prompt:     legacy,
			Audience:   audience,
			Source:     SourceLegacy,
		}, nil
	}

	res := &Result{
		EngineKey:  e.EngineKey,
		PromptType: stage,
		Audience:   audience,
		Source:     SourceNone,
	}
	return res, fmt.Errorf("%w: engine %q has no %s prompt", ErrNotAvailable, e.EngineKey, stage)
}

// InvalidateCache drops all memoized prompts. Called when framework primers
// or template overrides reload, since those change output without bumping
// any engine version.
func (a *Adapter) InvalidateCache() {
	if a.cache != nil {
		a.cache.purge()
	}
}

// CacheLen reports how many composed prompts are memoized.
func (a *Adapter) CacheLen() int {
	if a.cache == nil {
		return 0
	}
	return a.cache.len()
}
