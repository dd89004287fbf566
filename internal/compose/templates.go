package compose

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"
	"unicode"

	"engineroom/internal/assets"
	"engineroom/internal/engine"
	"engineroom/internal/logging"

	"golang.org/x/sync/singleflight"
)

// Exactly one template per stage ships with the binary. An override
// directory may replace any of them at deploy time without a rebuild.
//
//go:embed templates
var embeddedTemplates embed.FS

const templateExt = ".tmpl"

// funcMap returns the helpers stage templates may call. Kept deliberately
// small so template behavior stays predictable.
func funcMap() template.FuncMap {
	return template.FuncMap{
		// inc turns range indices into 1-based step numbers.
		"inc": func(i int) int { return i + 1 },
		// heading turns a section key like "core_commitments" into
		// "Core commitments" for display.
		"heading": func(s string) string {
			s = strings.ReplaceAll(s, "_", " ")
			r := []rune(s)
			if len(r) > 0 {
				r[0] = unicode.ToUpper(r[0])
			}
			return string(r)
		},
	}
}

func parseTemplate(stage engine.Stage, data []byte) (*template.Template, error) {
	tmpl, err := template.New(string(stage) + templateExt).
		Funcs(funcMap()).
		Option("missingkey=error").
		Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", stage, err)
	}
	return tmpl, nil
}

// TemplateStore holds one parsed prompt template per stage. A broken or
// missing template for a known stage is a deployment defect, so construction
// fails hard instead of deferring the problem to render time. After
// construction the store only swaps in override templates that parse, which
// keeps the render path free of configuration errors.
type TemplateStore struct {
	mu          sync.RWMutex
	templates   map[engine.Stage]*template.Template
	overrideDir string

	group    singleflight.Group
	watcher  *assets.Watcher
	onReload func()
}

// NewTemplateStore parses the embedded stage templates, then applies any
// overrides found in overrideDir (empty string disables overrides). Any
// parse failure at this point is a configuration error.
func NewTemplateStore(overrideDir string) (*TemplateStore, error) {
	timer := logging.StartTimer(logging.CategoryTemplates, "NewTemplateStore")
	defer timer.Stop()

	s := &TemplateStore{
		templates:   make(map[engine.Stage]*template.Template, len(engine.Stages)),
		overrideDir: overrideDir,
	}

	for _, stage := range engine.Stages {
		data, err := embeddedTemplates.ReadFile("templates/" + string(stage) + templateExt)
		if err != nil {
			return nil, fmt.Errorf("missing embedded template for stage %s: %w", stage, err)
		}
		tmpl, err := parseTemplate(stage, data)
		if err != nil {
			return nil, err
		}
		s.templates[stage] = tmpl
	}

	if overrideDir != "" {
		for _, stage := range engine.Stages {
			path := filepath.Join(overrideDir, string(stage)+templateExt)
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read template override %s: %w", path, err)
			}
			tmpl, err := parseTemplate(stage, data)
			if err != nil {
				return nil, err
			}
			s.templates[stage] = tmpl
			logging.Templates("Using override template for %s from %s", stage, path)
		}
	}

	logging.Templates("Template store ready (%d stages, overrides=%q)", len(s.templates), overrideDir)

	return s, nil
}

// MustLoad is NewTemplateStore for main(): a broken template means the
// deployment is broken, so panic rather than limp along.
func MustLoad(overrideDir string) *TemplateStore {
	s, err := NewTemplateStore(overrideDir)
	if err != nil {
		panic(fmt.Sprintf("compose: %v", err))
	}
	return s
}

// Load returns the parsed template for a stage. Templates are shared and
// must not be mutated by callers.
func (s *TemplateStore) Load(stage engine.Stage) (*template.Template, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	s.mu.RLock()
	tmpl, ok := s.templates[stage]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no template loaded for stage %s", stage)
	}
	return tmpl, nil
}

// reloadStage re-reads one stage's override file after a filesystem change.
// A deleted override reverts to the embedded template; a file that no longer
// parses is rejected and the last good template stays in service.
func (s *TemplateStore) reloadStage(stage engine.Stage) {
	_, _, _ = s.group.Do(string(stage), func() (interface{}, error) {
		path := filepath.Join(s.overrideDir, string(stage)+templateExt)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			embedded, readErr := embeddedTemplates.ReadFile("templates/" + string(stage) + templateExt)
			if readErr != nil {
				return nil, readErr
			}
			tmpl, parseErr := parseTemplate(stage, embedded)
			if parseErr != nil {
				return nil, parseErr
			}
			s.mu.Lock()
			s.templates[stage] = tmpl
			s.mu.Unlock()
			logging.Templates("Override for %s removed, reverted to embedded template", stage)
			return nil, nil
		}
		if err != nil {
			logging.Get(logging.CategoryTemplates).Error("Failed to read template override %s: %v", path, err)
			return nil, nil
		}

		tmpl, err := parseTemplate(stage, data)
		if err != nil {
			logging.Get(logging.CategoryTemplates).Error("Rejecting override %s, keeping last good template: %v", path, err)
			return nil, nil
		}

		s.mu.Lock()
		s.templates[stage] = tmpl
		s.mu.Unlock()
		logging.Templates("Reloaded override template for %s", stage)
		return nil, nil
	})
}

func (s *TemplateStore) reloadPaths(paths []string) {
	reloaded := false
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), templateExt)
		stage, err := engine.ParseStage(name)
		if err != nil {
			logging.Get(logging.CategoryTemplates).Warn("Ignoring change to %s, not a stage template", p)
			continue
		}
		s.reloadStage(stage)
		reloaded = true
	}
	if !reloaded {
		return
	}
	s.mu.RLock()
	fn := s.onReload
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// OnReload registers a callback invoked after a stage template changes on
// disk. Callers use it to drop composed prompts memoized against the old
// template. Set it before StartWatching.
func (s *TemplateStore) OnReload(fn func()) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// StartWatching reloads override templates when files in the override
// directory settle. No-op when the store has no override directory.
func (s *TemplateStore) StartWatching(ctx context.Context, debounce time.Duration) error {
	if s.overrideDir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := assets.NewWatcher(s.overrideDir, []string{templateExt}, debounce, s.reloadPaths)
	if err != nil {
		return fmt.Errorf("failed to watch template overrides: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// StopWatching stops the override watcher if one is running.
func (s *TemplateStore) StopWatching() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}
