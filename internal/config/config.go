// Package config defines the engineroom console configuration.
// Configuration is loaded from a YAML file (default .engineroom/config.yaml)
// with environment variable overrides for deployment-specific paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engineroom configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Data directory and database
	Data DataConfig `yaml:"data"`

	// Framework primer and stage template assets
	Assets AssetsConfig `yaml:"assets"`

	// Prompt composition settings
	Compose ComposeConfig `yaml:"compose"`

	// Change propagation settings
	Propagation PropagationConfig `yaml:"propagation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig configures where the console keeps its state.
type DataConfig struct {
	Dir          string `yaml:"dir"`           // console data directory
	DatabasePath string `yaml:"database_path"` // SQLite database file
}

// AssetsConfig configures framework primer and stage template sources.
// When Dir is empty only the embedded assets are used.
type AssetsConfig struct {
	Dir           string `yaml:"dir"`            // override directory for primers/ and templates/
	Watch         bool   `yaml:"watch"`          // reload assets on file changes
	WatchDebounce string `yaml:"watch_debounce"` // coalesce window for change bursts
}

// ComposeConfig configures the composition engine.
type ComposeConfig struct {
	CacheSize       int    `yaml:"cache_size"`       // composed prompt LRU entries, 0 disables
	DefaultAudience string `yaml:"default_audience"` // audience when none is requested
	LegacyFallback  bool   `yaml:"legacy_fallback"`  // serve legacy prompts for engines without stage context
}

// PropagationConfig configures change event fan-out.
type PropagationConfig struct {
	MaxConcurrent  int    `yaml:"max_concurrent"`  // parallel consumer notifications
	WebhookTimeout string `yaml:"webhook_timeout"` // per-webhook POST timeout
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "engineroom",
		Version: "1.0.0",

		Data: DataConfig{
			Dir:          ".engineroom",
			DatabasePath: filepath.Join(".engineroom", "console.db"),
		},

		Assets: AssetsConfig{
			Dir:           "",
			Watch:         false,
			WatchDebounce: "500ms",
		},

		Compose: ComposeConfig{
			CacheSize:       256,
			DefaultAudience: "analyst",
			LegacyFallback:  true,
		},

		Propagation: PropagationConfig{
			MaxConcurrent:  4,
			WebhookTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the default path to the console config file.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".engineroom", "config.yaml")
	}
	return filepath.Join(cwd, ".engineroom", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ENGINEROOM_DATA"); dir != "" {
		c.Data.Dir = dir
		// Database follows the data directory unless overridden separately
		c.Data.DatabasePath = filepath.Join(dir, "console.db")
	}
	if path := os.Getenv("ENGINEROOM_DB"); path != "" {
		c.Data.DatabasePath = path
	}
	if dir := os.Getenv("ENGINEROOM_ASSETS"); dir != "" {
		c.Assets.Dir = dir
	}
}

// GetWatchDebounce returns the asset watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Assets.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetWebhookTimeout returns the webhook POST timeout as a duration.
func (c *Config) GetWebhookTimeout() time.Duration {
	d, err := time.ParseDuration(c.Propagation.WebhookTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ValidLogLevels lists all supported log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data directory not configured")
	}
	if c.Data.DatabasePath == "" {
		return fmt.Errorf("database path not configured")
	}

	if c.Compose.CacheSize < 0 {
		return fmt.Errorf("compose cache size must be >= 0, got %d", c.Compose.CacheSize)
	}
	if c.Compose.DefaultAudience == "" {
		return fmt.Errorf("default audience not configured")
	}

	if c.Propagation.MaxConcurrent < 1 {
		return fmt.Errorf("propagation max_concurrent must be >= 1, got %d", c.Propagation.MaxConcurrent)
	}

	if c.Logging.Level != "" {
		valid := false
		for _, l := range ValidLogLevels {
			if c.Logging.Level == l {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
		}
	}

	if c.Assets.Watch && c.Assets.Dir == "" {
		return fmt.Errorf("assets watch enabled but no assets directory configured")
	}

	return nil
}
