package compose

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"engineroom/internal/engine"
	"engineroom/internal/framework"
	"engineroom/internal/logging"
)

// Composer turns a stage context into a rendered prompt. It holds only
// read-only collaborators, so one composer serves concurrent callers
// without locking.
type Composer struct {
	frameworks      framework.Store
	templates       *TemplateStore
	defaultAudience engine.Audience
}

// Option configures a Composer.
type Option func(*Composer)

// WithDefaultAudience sets the audience used when a caller passes none.
func WithDefaultAudience(a engine.Audience) Option {
	return func(c *Composer) {
		if a != "" {
			c.defaultAudience = a
		}
	}
}

// NewComposer builds a composer over a framework store and a template store.
func NewComposer(frameworks framework.Store, templates *TemplateStore, opts ...Option) *Composer {
	c := &Composer{
		frameworks:      frameworks,
		templates:       templates,
		defaultAudience: engine.AudienceAnalyst,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the prompt for one stage of one engine's stage context.
//
// Resolution order: the concretization skip flag wins outright; framework
// guidance is merged primary-first with missing keys omitted and noted;
// audience vocabulary falls back to analyst, then to empty; rendering either
// succeeds whole or fails whole. Recoverable conditions land in the Result,
// never in a returned error.
func (c *Composer) Compose(engineKey string, stage engine.Stage, sc *engine.StageContext, audience engine.Audience) *Result {
	start := time.Now()

	if audience == "" {
		audience = c.defaultAudience
	}

	res := &Result{
		EngineKey:  engineKey,
		PromptType: stage,
		Audience:   audience,
	}

	if sc == nil {
		res.Error = "no stage context"
		return res
	}

	if stage == engine.StageConcretization && sc.SkipConcretization {
		res.Skipped = true
		res.Source = SourceComposed
		logging.Compose("Concretization skipped for %s", engineKey)
		logging.Audit().ComposeSkipped(engineKey, string(stage))
		return res
	}

	if !sc.HasStage(stage) {
		res.Error = fmt.Sprintf("stage context has no %s section", stage)
		logging.ComposeWarn("Cannot compose %s for %s: %s", stage, engineKey, res.Error)
		logging.Audit().ComposeFailed(engineKey, string(stage), errors.New(res.Error))
		return res
	}

	primary, primers, notes := c.resolveFrameworks(sc)
	res.Notes = notes

	vocab := c.resolveVocabulary(engineKey, sc, audience)

	data := renderData(stage, sc, guidanceSections(framework.MergeGuidance(primers...)), vocabEntries(vocab), audience)

	tmpl, err := c.templates.Load(stage)
	if err != nil {
		res.Error = err.Error()
		logging.ComposeWarn("Cannot compose %s for %s: %v", stage, engineKey, err)
		logging.Audit().ComposeFailed(engineKey, string(stage), err)
		return res
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		// All or nothing: a half-rendered prompt is worse than none.
		res.Error = fmt.Sprintf("template rendering failed: %v", err)
		logging.ComposeWarn("Failed to render %s for %s: %v", stage, engineKey, err)
		logging.Audit().ComposeFailed(engineKey, string(stage), err)
		return res
	}

	res.Prompt = sb.String()
	res.Composed = true
	res.Source = SourceComposed
	if primary != nil {
		res.FrameworkUsed = primary.DisplayName
	}

	logging.Compose("Composed %s prompt for %s (audience=%s, framework=%q, %d bytes)",
		stage, engineKey, audience, res.FrameworkUsed, len(res.Prompt))
	logging.Audit().Composed(engineKey, string(stage), string(audience), res.FrameworkUsed, time.Since(start).Milliseconds())

	return res
}

// resolveFrameworks loads the primary framework and every additional one,
// in declaration order. A key that fails to resolve is omitted with an
// advisory note; one missing framework never sinks the whole composition.
func (c *Composer) resolveFrameworks(sc *engine.StageContext) (primary *framework.Primer, primers []*framework.Primer, notes []string) {
	if sc.FrameworkKey != "" {
		p, err := c.frameworks.Load(sc.FrameworkKey)
		if err != nil {
			notes = append(notes, fmt.Sprintf("framework %q not found; composed without it", sc.FrameworkKey))
			logging.FrameworksWarn("Primary framework %q not found: %v", sc.FrameworkKey, err)
		} else {
			primary = p
			primers = append(primers, p)
		}
	}

	for _, key := range sc.AdditionalFrameworks {
		p, err := c.frameworks.Load(key)
		if err != nil {
			notes = append(notes, fmt.Sprintf("framework %q not found; composed without it", key))
			logging.FrameworksWarn("Additional framework %q not found: %v", key, err)
			continue
		}
		primers = append(primers, p)
	}

	return primary, primers, notes
}

// resolveVocabulary returns the audience's substitution table, falling back
// to analyst, then to nothing. Vocabulary is best-effort enrichment; its
// absence is never an error.
func (c *Composer) resolveVocabulary(engineKey string, sc *engine.StageContext, audience engine.Audience) *vocabTable {
	if table, ok := sc.Vocabulary(audience); ok {
		return table
	}
	if table, ok := sc.Vocabulary(engine.AudienceAnalyst); ok {
		logging.ComposeDebug("No %s vocabulary for %s, using analyst", audience, engineKey)
		return table
	}
	logging.ComposeDebug("No vocabulary for %s, composing without substitutions", engineKey)
	return nil
}
