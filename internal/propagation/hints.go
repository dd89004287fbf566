package propagation

import (
	"fmt"
	"sort"
	"strings"
)

// HintKind classifies how a change affects downstream consumers.
type HintKind string

const (
	HintAdditive   HintKind = "additive"
	HintBreaking   HintKind = "breaking"
	HintCompatible HintKind = "compatible"
	HintGeneral    HintKind = "general"
)

// HintAction is the follow-up a hint asks of a consumer.
type HintAction string

const (
	ActionNoneRequired HintAction = "none_required"
	ActionRecommended  HintAction = "recommended"
	ActionRequired     HintAction = "required"
)

// Hint is one piece of migration advice derived from a change's diff.
type Hint struct {
	Kind    HintKind   `json:"kind"`
	Action  HintAction `json:"action"`
	Message string     `json:"message"`
}

// Hints analyzes a change and derives migration advice for consumers.
// Schema field removals are breaking, additions are additive; prompt or
// stage-context edits change output wording but not shape.
func Hints(change *Change) []Hint {
	if change == nil {
		return nil
	}

	switch change.ChangeType {
	case ChangeCreate:
		return []Hint{{
			Kind:    HintAdditive,
			Action:  ActionNoneRequired,
			Message: fmt.Sprintf("New %s %q is available; adopt it when useful.", change.ConstructType, change.ConstructKey),
		}}
	case ChangeDelete:
		return []Hint{{
			Kind:    HintBreaking,
			Action:  ActionRequired,
			Message: fmt.Sprintf("%s %q was removed; migrate off it before your next deploy.", titled(change.ConstructType), change.ConstructKey),
		}}
	}

	var hints []Hint

	if change.Diff.Has("canonical_schema") {
		added, removed := schemaFieldDelta(change.OldValue, change.NewValue)
		if len(removed) > 0 {
			hints = append(hints, Hint{
				Kind:    HintBreaking,
				Action:  ActionRequired,
				Message: fmt.Sprintf("Schema fields removed: %s. Consumers reading these fields will break.", strings.Join(removed, ", ")),
			})
		}
		if len(added) > 0 {
			hints = append(hints, Hint{
				Kind:    HintAdditive,
				Action:  ActionNoneRequired,
				Message: fmt.Sprintf("Schema fields added: %s. Existing parsers keep working.", strings.Join(added, ", ")),
			})
		}
	}

	if promptFields := promptishChanges(change); len(promptFields) > 0 {
		hints = append(hints, Hint{
			Kind:    HintCompatible,
			Action:  ActionRecommended,
			Message: fmt.Sprintf("Prompt behavior changed (%s). Output shape is unchanged; spot-check analysis quality.", strings.Join(promptFields, ", ")),
		})
	}

	if len(hints) == 0 {
		hints = append(hints, Hint{
			Kind:    HintGeneral,
			Action:  ActionRecommended,
			Message: fmt.Sprintf("%s %q changed (%s). Review the diff for impact.", titled(change.ConstructType), change.ConstructKey, change.ChangeSummary),
		})
	}

	return hints
}

// schemaFieldDelta compares the canonical_schema maps of both snapshots.
func schemaFieldDelta(oldSnap, newSnap map[string]interface{}) (added, removed []string) {
	oldSchema := schemaKeys(oldSnap)
	newSchema := schemaKeys(newSnap)

	for k := range newSchema {
		if _, ok := oldSchema[k]; !ok {
			added = append(added, k)
		}
	}
	for k := range oldSchema {
		if _, ok := newSchema[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func schemaKeys(snap map[string]interface{}) map[string]struct{} {
	keys := make(map[string]struct{})
	schema, ok := snap["canonical_schema"].(map[string]interface{})
	if !ok {
		return keys
	}
	for k := range schema {
		keys[k] = struct{}{}
	}
	return keys
}

func titled(ct ConstructType) string {
	s := string(ct)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func promptishChanges(change *Change) []string {
	var fields []string
	for _, f := range change.Diff.ChangedFields() {
		if strings.HasSuffix(f, "_prompt") || f == "stage_context" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}
