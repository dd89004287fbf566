package ordmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMapInsertionOrder(t *testing.T) {
	t.Run("keys come back in insertion order", func(t *testing.T) {
		m := New[string]()
		m.Set("zulu", "z")
		m.Set("alpha", "a")
		m.Set("mike", "m")

		assert.Equal(t, []string{"zulu", "alpha", "mike"}, m.Keys())
	})

	t.Run("replacing a key keeps its position", func(t *testing.T) {
		m := New[int]()
		m.Set("first", 1)
		m.Set("second", 2)
		m.Set("first", 10)

		assert.Equal(t, []string{"first", "second"}, m.Keys())
		v, ok := m.Get("first")
		require.True(t, ok)
		assert.Equal(t, 10, v)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var m Map[string]
		m.Set("k", "v")
		assert.Equal(t, 1, m.Len())
	})

	t.Run("nil map reads safely", func(t *testing.T) {
		var m *Map[string]
		assert.Equal(t, 0, m.Len())
		assert.False(t, m.Has("anything"))
		_, ok := m.Get("anything")
		assert.False(t, ok)
	})
}

func TestMapRange(t *testing.T) {
	m := FromPairs[string]("a", "1", "b", "2", "c", "3")

	t.Run("visits entries in order", func(t *testing.T) {
		var keys []string
		m.Range(func(k, _ string) bool {
			keys = append(keys, k)
			return true
		})
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("stops when fn returns false", func(t *testing.T) {
		var count int
		m.Range(func(_, _ string) bool {
			count++
			return count < 2
		})
		assert.Equal(t, 2, count)
	})
}

func TestMapYAMLRoundTrip(t *testing.T) {
	t.Run("document order survives decode", func(t *testing.T) {
		input := "zebra: last letter\napple: first fruit\nmango: tropical\n"

		var m Map[string]
		require.NoError(t, yaml.Unmarshal([]byte(input), &m))

		assert.Equal(t, []string{"zebra", "apple", "mango"}, m.Keys())
		v, ok := m.Get("apple")
		require.True(t, ok)
		assert.Equal(t, "first fruit", v)
	})

	t.Run("marshal preserves order", func(t *testing.T) {
		m := FromPairs[string]("c", "3", "a", "1", "b", "2")

		out, err := yaml.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, "c: \"3\"\na: \"1\"\nb: \"2\"\n", string(out))
	})

	t.Run("rejects non-mapping nodes", func(t *testing.T) {
		var m Map[string]
		err := yaml.Unmarshal([]byte("- a\n- b\n"), &m)
		assert.Error(t, err)
	})

	t.Run("nested list values decode", func(t *testing.T) {
		input := "steps:\n  - one\n  - two\nnotes:\n  - three\n"

		var m Map[[]string]
		require.NoError(t, yaml.Unmarshal([]byte(input), &m))

		steps, ok := m.Get("steps")
		require.True(t, ok)
		assert.Equal(t, []string{"one", "two"}, steps)
	})
}

func TestMapJSONRoundTrip(t *testing.T) {
	t.Run("order survives marshal and unmarshal", func(t *testing.T) {
		m := FromPairs[string]("claim_id", "stable identifier", "claim_text", "verbatim text", "stance", "position taken")

		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, `{"claim_id":"stable identifier","claim_text":"verbatim text","stance":"position taken"}`, string(data))

		var back Map[string]
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, m.Keys(), back.Keys())
	})

	t.Run("empty map marshals to empty object", func(t *testing.T) {
		var m Map[string]
		data, err := json.Marshal(&m)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	})

	t.Run("rejects arrays", func(t *testing.T) {
		var m Map[string]
		assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &m))
	})

	t.Run("nested map values decode", func(t *testing.T) {
		data := []byte(`{"researcher":{"claim":"proposition"},"analyst":{"claim":"assertion"}}`)

		var m Map[*Map[string]]
		require.NoError(t, json.Unmarshal(data, &m))

		assert.Equal(t, []string{"researcher", "analyst"}, m.Keys())
		inner, ok := m.Get("analyst")
		require.True(t, ok)
		phrasing, ok := inner.Get("claim")
		require.True(t, ok)
		assert.Equal(t, "assertion", phrasing)
	})
}

func TestMapClone(t *testing.T) {
	m := FromPairs[string]("x", "1", "y", "2")
	clone := m.Clone()
	clone.Set("z", "3")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, clone.Len())
	assert.Equal(t, []string{"x", "y"}, m.Keys())
}
