package framework

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writePrimerFile(t *testing.T, dir, key, displayName string) string {
	t.Helper()
	doc := "key: " + key + "\ndisplay_name: " + displayName + "\nsections:\n  core_commitments:\n    - \"something\"\n"
	path := filepath.Join(dir, key+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestDirStoreOverrideShadowsFallback(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "toulmin", "Toulmin (Local Edit)")

	fallback := NewMapStore(&Primer{Key: "toulmin", DisplayName: "Toulmin Argumentation Model"})
	store := NewDirStore(dir, fallback)

	p, err := store.Load("toulmin")
	require.NoError(t, err)
	assert.Equal(t, "Toulmin (Local Edit)", p.DisplayName)
}

func TestDirStoreFallsBack(t *testing.T) {
	dir := t.TempDir()
	fallback := NewMapStore(&Primer{Key: "dennett", DisplayName: "Dennettian Stance Analysis"})
	store := NewDirStore(dir, fallback)

	p, err := store.Load("dennett")
	require.NoError(t, err)
	assert.Equal(t, "Dennettian Stance Analysis", p.DisplayName)
}

func TestDirStoreUnknownKey(t *testing.T) {
	store := NewDirStore(t.TempDir(), nil)

	_, err := store.Load("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDirStoreMismatchedFileKey(t *testing.T) {
	dir := t.TempDir()
	// File named brandomian.yaml but defining a different key
	doc := "key: somebody-else\ndisplay_name: Wrong\nsections:\n  core_commitments:\n    - \"x\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brandomian.yaml"), []byte(doc), 0644))

	fallback := NewMapStore(&Primer{Key: "brandomian", DisplayName: "Brandomian Scorekeeping"})
	store := NewDirStore(dir, fallback)

	p, err := store.Load("brandomian")
	require.NoError(t, err)
	assert.Equal(t, "Brandomian Scorekeeping", p.DisplayName,
		"a file that does not define its own key is ignored")
}

func TestDirStoreInvalidateRereads(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "toulmin", "First Draft")

	store := NewDirStore(dir, nil)

	p, err := store.Load("toulmin")
	require.NoError(t, err)
	assert.Equal(t, "First Draft", p.DisplayName)

	writePrimerFile(t, dir, "toulmin", "Second Draft")

	// Cached until invalidated
	p, err = store.Load("toulmin")
	require.NoError(t, err)
	assert.Equal(t, "First Draft", p.DisplayName)

	store.Invalidate("toulmin")
	p, err = store.Load("toulmin")
	require.NoError(t, err)
	assert.Equal(t, "Second Draft", p.DisplayName)
}

func TestDirStoreDeletedOverrideFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := writePrimerFile(t, dir, "dennett", "Local Dennett")

	fallback := NewMapStore(&Primer{Key: "dennett", DisplayName: "Dennettian Stance Analysis"})
	store := NewDirStore(dir, fallback)

	p, err := store.Load("dennett")
	require.NoError(t, err)
	assert.Equal(t, "Local Dennett", p.DisplayName)

	require.NoError(t, os.Remove(path))
	store.Invalidate("dennett")

	p, err = store.Load("dennett")
	require.NoError(t, err)
	assert.Equal(t, "Dennettian Stance Analysis", p.DisplayName)
}

func TestDirStoreKeysUnion(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "custom", "Custom Framework")

	fallback := NewMapStore(
		&Primer{Key: "toulmin", DisplayName: "Toulmin Argumentation Model"},
		&Primer{Key: "custom", DisplayName: "Embedded Custom"},
	)
	store := NewDirStore(dir, fallback)

	assert.Equal(t, []string{"custom", "toulmin"}, store.Keys())
}

func TestDirStoreConcurrentFirstLoad(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "brandomian", "Brandomian Scorekeeping")

	store := NewDirStore(dir, nil)

	var wg sync.WaitGroup
	results := make([]*Primer, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := store.Load("brandomian")
			if err != nil {
				t.Errorf("concurrent Load failed: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		assert.Same(t, results[0], results[i], "all concurrent loaders should see one primer instance")
	}
}

func TestDirStoreWatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "toulmin", "First Draft")

	store := NewDirStore(dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.StartWatching(ctx, 50*time.Millisecond))
	defer store.StopWatching()

	p, err := store.Load("toulmin")
	require.NoError(t, err)
	require.Equal(t, "First Draft", p.DisplayName)

	writePrimerFile(t, dir, "toulmin", "Second Draft")

	// The watcher should invalidate the cache within the debounce window
	deadline := time.After(3 * time.Second)
	for {
		p, err = store.Load("toulmin")
		require.NoError(t, err)
		if p.DisplayName == "Second Draft" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not pick up the edited primer in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestDirStoreWatchRunsOnReload(t *testing.T) {
	dir := t.TempDir()
	writePrimerFile(t, dir, "toulmin", "First Draft")

	store := NewDirStore(dir, nil)
	reloaded := make(chan struct{}, 4)
	store.OnReload(func() { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.StartWatching(ctx, 50*time.Millisecond))
	defer store.StopWatching()

	writePrimerFile(t, dir, "toulmin", "Second Draft")

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("OnReload callback never fired after a primer edit")
	}
}
