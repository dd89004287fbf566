// Package diff computes the change payloads recorded when a construct
// (engine, paradigm, pipeline) is created, updated, or deleted: a
// field-level comparison of two snapshot maps, with line-level detail
// for prompt text so reviewers can see what actually changed in the
// words an analysis service will receive.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldChange records one field whose value differs between snapshots.
type FieldChange struct {
	Field string      `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

// ConstructDiff is the field-level difference between two construct
// snapshots. Field lists are sorted so the same pair of snapshots always
// produces the same diff.
type ConstructDiff struct {
	Added   []string      `json:"added,omitempty"`
	Removed []string      `json:"removed,omitempty"`
	Changed []FieldChange `json:"changed,omitempty"`

	// PromptDiffs holds unified line diffs for changed fields that carry
	// prompt text, keyed by field name.
	PromptDiffs map[string]string `json:"prompt_diffs,omitempty"`
}

// Construct compares two snapshot maps field by field. Either side may be
// nil (creation diffs have no old side, deletion diffs no new side).
func Construct(oldSnap, newSnap map[string]interface{}) *ConstructDiff {
	d := &ConstructDiff{}

	for _, field := range sortedKeys(oldSnap) {
		oldVal := oldSnap[field]
		newVal, ok := newSnap[field]
		if !ok {
			d.Removed = append(d.Removed, field)
			continue
		}
		if jsonEqual(oldVal, newVal) {
			continue
		}
		d.Changed = append(d.Changed, FieldChange{Field: field, Old: oldVal, New: newVal})
		if oldText, newText, ok := promptTexts(field, oldVal, newVal); ok {
			if d.PromptDiffs == nil {
				d.PromptDiffs = make(map[string]string)
			}
			d.PromptDiffs[field] = Unified(oldText, newText)
		}
	}

	for _, field := range sortedKeys(newSnap) {
		if _, ok := oldSnap[field]; !ok {
			d.Added = append(d.Added, field)
		}
	}

	return d
}

// Empty reports whether the two snapshots were identical.
func (d *ConstructDiff) Empty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0)
}

// ChangedFields returns the names of all fields that differ, including
// added and removed ones.
func (d *ConstructDiff) ChangedFields() []string {
	if d == nil {
		return nil
	}
	fields := make([]string, 0, len(d.Added)+len(d.Removed)+len(d.Changed))
	for _, c := range d.Changed {
		fields = append(fields, c.Field)
	}
	fields = append(fields, d.Added...)
	fields = append(fields, d.Removed...)
	sort.Strings(fields)
	return fields
}

// Has reports whether the named field differs in any way.
func (d *ConstructDiff) Has(field string) bool {
	if d == nil {
		return false
	}
	for _, f := range d.ChangedFields() {
		if f == field {
			return true
		}
	}
	return false
}

// Summary renders a one-line description suitable for a change record.
func (d *ConstructDiff) Summary() string {
	if d.Empty() {
		return "No changes"
	}
	var parts []string
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	return "Fields: " + strings.Join(parts, ", ")
}

// Snapshot converts any JSON-serializable construct into the generic map
// form that Construct compares. Numbers come back as float64 and nested
// structs as maps, on both sides, so comparisons stay type-consistent.
func Snapshot(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot construct: %w", err)
	}
	var snap map[string]interface{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode construct snapshot: %w", err)
	}
	return snap, nil
}

// jsonEqual compares two values by their canonical JSON encoding. Both
// sides of a snapshot pass through encoding/json, so map key order is the
// only source of instability and Go's encoder already sorts those.
func jsonEqual(a, b interface{}) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// promptTexts reports whether a changed field carries prompt text worth a
// line diff: both sides are strings and the field is a known prompt
// column or the text is multi-line.
func promptTexts(field string, oldVal, newVal interface{}) (string, string, bool) {
	oldText, okOld := oldVal.(string)
	newText, okNew := newVal.(string)
	if !okOld || !okNew {
		return "", "", false
	}
	if strings.HasSuffix(field, "_prompt") {
		return oldText, newText, true
	}
	if strings.Contains(oldText, "\n") || strings.Contains(newText, "\n") {
		return oldText, newText, true
	}
	return "", "", false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
