// Embedded primer loader for the baked-in framework set.
// go:embed bakes the primer definitions into the binary at compile time so a
// deployment works with no filesystem assets at all.
package framework

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"engineroom/internal/logging"

	"gopkg.in/yaml.v3"
)

// embeddedPrimers contains all YAML files from primers/ baked into the binary.
//
//go:embed primers
var embeddedPrimers embed.FS

// LoadEmbedded loads the baked-in framework primers from the embedded
// filesystem. Called at startup to initialize the primer store.
func LoadEmbedded() (*MapStore, error) {
	timer := logging.StartTimer(logging.CategoryFrameworks, "LoadEmbedded")
	defer timer.Stop()

	logging.Frameworks("Loading embedded framework primers")

	var all []*Primer

	err := fs.WalkDir(embeddedPrimers, "primers", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		primers, parseErr := parseEmbeddedYAML(path)
		if parseErr != nil {
			logging.FrameworksWarn("Failed to parse embedded primer %s: %v", path, parseErr)
			return nil // Continue with other files
		}

		all = append(all, primers...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk embedded primers: %w", err)
	}

	logging.Frameworks("Loaded %d primers from embedded set", len(all))

	return NewMapStore(all...), nil
}

// parseEmbeddedYAML parses a YAML file from the embedded filesystem.
func parseEmbeddedYAML(path string) ([]*Primer, error) {
	data, err := embeddedPrimers.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded file: %w", err)
	}
	return ParsePrimers(data, path)
}

// ParsePrimers parses primer definitions from YAML bytes. A file may hold a
// single primer document or an array of primers.
func ParsePrimers(data []byte, source string) ([]*Primer, error) {
	// Parse as array of primers
	var raw []*Primer
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Try parsing as single primer
		var single Primer
		if singleErr := yaml.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		raw = []*Primer{&single}
	}

	var primers []*Primer
	for _, p := range raw {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			logging.Get(logging.CategoryFrameworks).Error("Skipping invalid primer in %s: %v", source, err)
			continue
		}
		primers = append(primers, p)
	}

	return primers, nil
}

// MustLoadEmbedded loads the embedded primers and panics on error.
// Use this for initialization where failure is unrecoverable.
func MustLoadEmbedded() *MapStore {
	store, err := LoadEmbedded()
	if err != nil {
		panic(fmt.Sprintf("failed to load embedded primers: %v", err))
	}
	return store
}
