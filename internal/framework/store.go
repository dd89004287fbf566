package framework

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a primer key does not resolve. Composition
// treats this as non-fatal: the framework's guidance is omitted and an
// advisory note is attached to the result.
var ErrNotFound = errors.New("framework not found")

// Store is a read-only keyed lookup of framework primers. Repeated lookups
// are O(1) after first load and safe for concurrent use.
type Store interface {
	// Load returns the primer for key, or an error wrapping ErrNotFound.
	Load(key string) (*Primer, error)
	// Keys returns all known primer keys, sorted.
	Keys() []string
}

// MapStore is an in-memory Store, used for the embedded primer set and as a
// fixture in tests.
type MapStore struct {
	primers map[string]*Primer
}

// NewMapStore builds a MapStore from the given primers. Later primers with a
// duplicate key replace earlier ones.
func NewMapStore(primers ...*Primer) *MapStore {
	m := &MapStore{primers: make(map[string]*Primer, len(primers))}
	for _, p := range primers {
		if p != nil && p.Key != "" {
			m.primers[p.Key] = p
		}
	}
	return m
}

// Load implements Store.
func (m *MapStore) Load(key string) (*Primer, error) {
	p, ok := m.primers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return p, nil
}

// Keys implements Store.
func (m *MapStore) Keys() []string {
	keys := make([]string, 0, len(m.primers))
	for k := range m.primers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of primers in the store.
func (m *MapStore) Count() int {
	return len(m.primers)
}
