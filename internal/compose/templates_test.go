package compose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"engineroom/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeOverride(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func renderExtraction(t *testing.T, s *TemplateStore) string {
	t.Helper()
	tmpl, err := s.Load(engine.StageExtraction)
	require.NoError(t, err)

	data := renderData(engine.StageExtraction, extractionContext(), nil, nil, engine.AudienceAnalyst)
	var sb strings.Builder
	require.NoError(t, tmpl.Execute(&sb, data))
	return sb.String()
}

func TestTemplateStoreLoadsEmbedded(t *testing.T) {
	s, err := NewTemplateStore("")
	require.NoError(t, err)

	for _, stage := range engine.Stages {
		tmpl, err := s.Load(stage)
		require.NoError(t, err, "stage %s", stage)
		assert.NotNil(t, tmpl)
	}

	_, err = s.Load("distillation")
	assert.Error(t, err)
}

func TestTemplateStoreOverride(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "extraction.tmpl", "OVERRIDDEN for {{.analysis_type}}\n")

	s, err := NewTemplateStore(dir)
	require.NoError(t, err)

	out := renderExtraction(t, s)
	assert.Equal(t, "OVERRIDDEN for argument\n", out)

	t.Run("other stages keep embedded templates", func(t *testing.T) {
		tmpl, err := s.Load(engine.StageCuration)
		require.NoError(t, err)
		assert.NotNil(t, tmpl)
	})
}

func TestTemplateStoreBrokenOverrideIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "curation.tmpl", "{{if .item_type}} unclosed")

	_, err := NewTemplateStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curation")

	assert.Panics(t, func() { MustLoad(dir) })
}

func TestTemplateStoreReload(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "extraction.tmpl", "V1 {{.analysis_type}}\n")

	s, err := NewTemplateStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.StartWatching(context.Background(), 50*time.Millisecond))
	defer s.StopWatching()

	require.Equal(t, "V1 argument\n", renderExtraction(t, s))

	writeOverride(t, dir, "extraction.tmpl", "V2 {{.analysis_type}}\n")
	waitForRender(t, s, "V2 argument\n")

	t.Run("broken rewrite keeps last good template", func(t *testing.T) {
		writeOverride(t, dir, "extraction.tmpl", "{{broken")
		time.Sleep(300 * time.Millisecond)
		assert.Equal(t, "V2 argument\n", renderExtraction(t, s))
	})

	t.Run("deleting the override reverts to embedded", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "extraction.tmpl")))
		deadline := time.After(3 * time.Second)
		for {
			out := renderExtraction(t, s)
			if strings.Contains(out, "You are performing argument extraction") {
				return
			}
			select {
			case <-deadline:
				t.Fatalf("embedded template never restored, last render:\n%s", out)
			case <-time.After(20 * time.Millisecond):
			}
		}
	})
}

func waitForRender(t *testing.T, s *TemplateStore, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if renderExtraction(t, s) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("template never reloaded to %q", want)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHeadingFunc(t *testing.T) {
	heading := funcMap()["heading"].(func(string) string)
	assert.Equal(t, "Core commitments", heading("core_commitments"))
	assert.Equal(t, "Vocabulary", heading("vocabulary"))
	assert.Equal(t, "", heading(""))
}

func TestTemplateStoreReloadRunsOnReload(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "extraction.tmpl", "V1 {{.analysis_type}}\n")

	s, err := NewTemplateStore(dir)
	require.NoError(t, err)

	reloaded := make(chan struct{}, 4)
	s.OnReload(func() { reloaded <- struct{}{} })

	require.NoError(t, s.StartWatching(context.Background(), 50*time.Millisecond))
	defer s.StopWatching()

	writeOverride(t, dir, "extraction.tmpl", "V2 {{.analysis_type}}\n")

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("OnReload callback never fired after a template edit")
	}

	t.Run("non-stage template files do not notify", func(t *testing.T) {
		writeOverride(t, dir, "scratch.tmpl", "not a stage\n")
		select {
		case <-reloaded:
			t.Fatal("OnReload fired for a file that is not a stage template")
		case <-time.After(500 * time.Millisecond):
		}
	})
}
