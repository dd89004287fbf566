package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"engineroom/internal/logging"

	"gopkg.in/yaml.v3"
)

// LoadDefinitions reads engine definitions from a directory tree. Files may
// be YAML or JSON (JSON parses as a YAML subset), each holding one definition
// or an array of definitions. Invalid files are skipped with a logged error
// so one bad definition does not block a whole import.
func LoadDefinitions(dir string) ([]*Engine, error) {
	timer := logging.StartTimer(logging.CategoryRegistry, "LoadDefinitions")
	defer timer.Stop()

	logging.Registry("Loading engine definitions from %s", dir)

	var all []*Engine

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logging.Get(logging.CategoryRegistry).Error("Failed to read %s: %v", path, readErr)
			return nil // Continue with other files
		}

		engines, parseErr := ParseDefinitions(data, path)
		if parseErr != nil {
			logging.Get(logging.CategoryRegistry).Error("Failed to parse %s: %v", path, parseErr)
			return nil
		}

		all = append(all, engines...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk definitions directory: %w", err)
	}

	logging.Registry("Loaded %d engine definitions from %s", len(all), dir)

	return all, nil
}

// ParseDefinitions parses engine definitions from bytes. A file may hold a
// single definition document or an array of definitions.
func ParseDefinitions(data []byte, source string) ([]*Engine, error) {
	// Parse as array of definitions
	var raw []*Engine
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Try parsing as single definition
		var single Engine
		if singleErr := yaml.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("failed to parse definitions: %w", err)
		}
		raw = []*Engine{&single}
	}

	var engines []*Engine
	for _, e := range raw {
		if e == nil {
			continue
		}
		e.ApplyDefaults()
		if err := e.Validate(); err != nil {
			logging.Get(logging.CategoryRegistry).Error("Skipping invalid definition in %s: %v", source, err)
			continue
		}
		engines = append(engines, e)
	}

	return engines, nil
}
