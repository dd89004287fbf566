// Package compose renders stage prompts from engine stage contexts. It is
// the one subsystem with real resolution rules: framework guidance merging,
// audience vocabulary fallback, template rendering with hard interpolation
// failures, and graceful fallback to legacy static prompts.
package compose

import (
	"errors"

	"engineroom/internal/engine"
)

// Source records which path produced a prompt.
type Source string

const (
	// SourceComposed means the stage context path rendered the prompt.
	SourceComposed Source = "composed"
	// SourceLegacy means the engine's stored static prompt was returned.
	SourceLegacy Source = "legacy"
	// SourceNone means neither path had anything to offer.
	SourceNone Source = ""
)

// ErrNotAvailable is returned by the adapter when an engine has neither a
// stage context nor a legacy prompt for the requested stage. It is distinct
// from a composition error and from a successful empty render.
var ErrNotAvailable = errors.New("no prompt available")

// Result is the outcome of one prompt request. It is transient, never
// persisted; the JSON shape matches what the console prints and serves.
type Result struct {
	EngineKey     string          `json:"engine_key"`
	PromptType    engine.Stage    `json:"prompt_type"`
	Prompt        string          `json:"prompt"`
	Audience      engine.Audience `json:"audience"`
	FrameworkUsed string          `json:"framework_used,omitempty"`
	Composed      bool            `json:"composed"`
	Skipped       bool            `json:"skipped"`
	Error         string          `json:"error,omitempty"`
	Notes         []string        `json:"notes,omitempty"`

	Source Source `json:"-"`
}

// OK reports whether the request produced a usable prompt. A skipped
// concretization counts: the caller asked a question and got a defined
// answer, not a failure.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	return r.Error == "" && (r.Composed || r.Skipped || r.Source == SourceLegacy)
}

// clone returns a copy safe to hand out from a shared cache.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Notes = append([]string(nil), r.Notes...)
	return &out
}
