package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructAddedRemovedChanged(t *testing.T) {
	oldSnap := map[string]interface{}{
		"engine_name": "Claim Extractor",
		"category":    "argument",
		"version":     float64(1),
	}
	newSnap := map[string]interface{}{
		"engine_name": "Claim Extractor",
		"category":    "epistemology",
		"status":      "active",
	}

	d := Construct(oldSnap, newSnap)
	require.False(t, d.Empty())

	assert.Equal(t, []string{"status"}, d.Added)
	assert.Equal(t, []string{"version"}, d.Removed)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, "category", d.Changed[0].Field)
	assert.Equal(t, "argument", d.Changed[0].Old)
	assert.Equal(t, "epistemology", d.Changed[0].New)
}

func TestConstructIdenticalSnapshots(t *testing.T) {
	snap := map[string]interface{}{
		"engine_name": "Claim Extractor",
		"paradigms":   []interface{}{"brandomian"},
	}
	d := Construct(snap, snap)
	assert.True(t, d.Empty())
	assert.Equal(t, "No changes", d.Summary())
}

func TestConstructNestedValueComparison(t *testing.T) {
	oldSnap := map[string]interface{}{
		"canonical_schema": map[string]interface{}{"claim_id": "string", "text": "string"},
	}
	newSnap := map[string]interface{}{
		"canonical_schema": map[string]interface{}{"claim_id": "string", "text": "string", "stance": "string"},
	}

	d := Construct(oldSnap, newSnap)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, "canonical_schema", d.Changed[0].Field)
}

func TestConstructPromptDiff(t *testing.T) {
	oldSnap := map[string]interface{}{
		"extraction_prompt": "Extract all claims.\nList them in order.",
	}
	newSnap := map[string]interface{}{
		"extraction_prompt": "Extract all claims.\nNumber them in order.",
	}

	d := Construct(oldSnap, newSnap)
	require.Contains(t, d.PromptDiffs, "extraction_prompt")
	assert.Contains(t, d.PromptDiffs["extraction_prompt"], "- List them in order.")
	assert.Contains(t, d.PromptDiffs["extraction_prompt"], "+ Number them in order.")
}

func TestConstructNilSides(t *testing.T) {
	snap := map[string]interface{}{"engine_key": "claim_extractor", "version": float64(1)}

	created := Construct(nil, snap)
	assert.ElementsMatch(t, []string{"engine_key", "version"}, created.Added)
	assert.Empty(t, created.Removed)

	deleted := Construct(snap, nil)
	assert.ElementsMatch(t, []string{"engine_key", "version"}, deleted.Removed)
	assert.Empty(t, deleted.Added)
}

func TestChangedFieldsAndHas(t *testing.T) {
	d := Construct(
		map[string]interface{}{"a": 1, "b": 2, "c": 3},
		map[string]interface{}{"a": 1, "b": 9, "d": 4},
	)
	assert.Equal(t, []string{"b", "c", "d"}, d.ChangedFields())
	assert.True(t, d.Has("b"))
	assert.False(t, d.Has("a"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	type widget struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	snap, err := Snapshot(widget{Name: "w", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, "w", snap["name"])
	assert.Equal(t, float64(3), snap["count"])

	nilSnap, err := Snapshot(nil)
	require.NoError(t, err)
	assert.Nil(t, nilSnap)
}

func TestLinesEqualInput(t *testing.T) {
	lines := Lines("one\ntwo", "one\ntwo")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, OpEqual, l.Op)
	}
}

func TestUnifiedMarksInsertsAndDeletes(t *testing.T) {
	got := Unified("keep\ndrop me\nkeep too", "keep\nadd me\nkeep too")
	assert.Contains(t, got, "  keep")
	assert.Contains(t, got, "- drop me")
	assert.Contains(t, got, "+ add me")
}

func TestUnifiedEmptyOldSide(t *testing.T) {
	got := Unified("", "first line\nsecond line")
	assert.Contains(t, got, "+ first line")
	assert.Contains(t, got, "+ second line")
}
