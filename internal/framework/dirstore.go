package framework

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"engineroom/internal/assets"
	"engineroom/internal/logging"

	"golang.org/x/sync/singleflight"
)

// DirStore serves primers from an override directory, falling back to another
// store for keys with no file on disk. Files are loaded lazily and cached;
// concurrent first loads of the same key collapse into a single read. The
// file naming contract is one primer per file, <key>.yaml.
type DirStore struct {
	dir      string
	fallback Store

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Primer

	watcher  *assets.Watcher
	onReload func()
}

// NewDirStore creates a DirStore over dir. fallback may be nil, in which case
// unknown keys resolve to ErrNotFound.
func NewDirStore(dir string, fallback Store) *DirStore {
	return &DirStore{
		dir:      dir,
		fallback: fallback,
		cache:    make(map[string]*Primer),
	}
}

// Load implements Store. Override files shadow fallback primers with the
// same key.
func (s *DirStore) Load(key string) (*Primer, error) {
	s.mu.RLock()
	if p, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return p, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check under the group: another caller may have filled the cache
		s.mu.RLock()
		if p, ok := s.cache[key]; ok {
			s.mu.RUnlock()
			return p, nil
		}
		s.mu.RUnlock()

		p, err := s.loadFromDir(key)
		if err != nil {
			return nil, err
		}
		if p == nil {
			// No override file; defer to the fallback without caching so a
			// later override file takes effect immediately.
			if s.fallback != nil {
				return s.fallback.Load(key)
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		s.mu.Lock()
		s.cache[key] = p
		s.mu.Unlock()

		logging.Frameworks("Loaded override primer %q from %s", key, s.dir)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Primer), nil
}

// loadFromDir reads <dir>/<key>.yaml (or .yml). Returns (nil, nil) when no
// override file exists for the key.
func (s *DirStore) loadFromDir(key string) (*Primer, error) {
	var data []byte
	var path string
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(s.dir, key+ext)
		b, err := os.ReadFile(candidate)
		if err == nil {
			data, path = b, candidate
			break
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read primer file %s: %w", candidate, err)
		}
	}
	if path == "" {
		return nil, nil
	}

	primers, err := ParsePrimers(data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse primer file %s: %w", path, err)
	}
	for _, p := range primers {
		if p.Key == key {
			return p, nil
		}
	}

	logging.FrameworksWarn("Primer file %s does not define key %q, ignoring", path, key)
	return nil, nil
}

// Keys implements Store: the union of override files and fallback keys.
func (s *DirStore) Keys() []string {
	seen := make(map[string]bool)

	entries, err := os.ReadDir(s.dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = true
		}
	}

	if s.fallback != nil {
		for _, k := range s.fallback.Keys() {
			seen[k] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Invalidate drops the cached primer for key so the next Load re-reads disk.
func (s *DirStore) Invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// InvalidateAll drops every cached primer.
func (s *DirStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]*Primer)
	s.mu.Unlock()
}

// invalidatePaths maps settled file paths back to primer keys and drops them.
func (s *DirStore) invalidatePaths(paths []string) {
	for _, p := range paths {
		base := filepath.Base(p)
		key := strings.TrimSuffix(base, filepath.Ext(base))
		logging.Frameworks("Primer %q changed on disk, invalidating", key)
		s.Invalidate(key)
	}
	if len(paths) == 0 {
		return
	}
	s.mu.RLock()
	fn := s.onReload
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// OnReload registers a callback invoked after primer files change on disk.
// Callers use it to drop composed prompts built from the old primers. Set
// it before StartWatching.
func (s *DirStore) OnReload(fn func()) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// StartWatching watches the override directory and invalidates cached primers
// when their files change.
func (s *DirStore) StartWatching(ctx context.Context, debounce time.Duration) error {
	if s.watcher != nil {
		return nil // Already watching
	}

	w, err := assets.NewWatcher(s.dir, []string{".yaml", ".yml"}, debounce, s.invalidatePaths)
	if err != nil {
		return fmt.Errorf("failed to create primer watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// StopWatching stops the override watcher if one is running.
func (s *DirStore) StopWatching() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}
