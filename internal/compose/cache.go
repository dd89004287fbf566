package compose

import (
	"github.com/hashicorp/golang-lru/v2"

	"engineroom/internal/engine"
)

type cacheKey struct {
	engineKey string
	version   int
	stage     engine.Stage
	audience  engine.Audience
}

// promptCache memoizes successful compositions. The engine version is part
// of the key, so engine edits miss naturally; primer and template reloads
// change output without a version bump and must purge instead.
type promptCache struct {
	entries *lru.Cache[cacheKey, *Result]
}

func newPromptCache(size int) (*promptCache, error) {
	entries, err := lru.New[cacheKey, *Result](size)
	if err != nil {
		return nil, err
	}
	return &promptCache{entries: entries}, nil
}

func (p *promptCache) get(e *engine.Engine, stage engine.Stage, audience engine.Audience) (*Result, bool) {
	res, ok := p.entries.Get(cacheKey{e.EngineKey, e.Version, stage, audience})
	if !ok {
		return nil, false
	}
	return res.clone(), true
}

func (p *promptCache) add(e *engine.Engine, stage engine.Stage, audience engine.Audience, res *Result) {
	p.entries.Add(cacheKey{e.EngineKey, e.Version, stage, audience}, res.clone())
}

func (p *promptCache) purge() {
	p.entries.Purge()
}

func (p *promptCache) len() int {
	return p.entries.Len()
}
