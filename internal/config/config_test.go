package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "engineroom" {
		t.Errorf("expected Name=engineroom, got %s", cfg.Name)
	}
	if cfg.Compose.DefaultAudience != "analyst" {
		t.Errorf("expected DefaultAudience=analyst, got %s", cfg.Compose.DefaultAudience)
	}
	if cfg.Compose.CacheSize != 256 {
		t.Errorf("expected CacheSize=256, got %d", cfg.Compose.CacheSize)
	}
	if cfg.Propagation.MaxConcurrent != 4 {
		t.Errorf("expected MaxConcurrent=4, got %d", cfg.Propagation.MaxConcurrent)
	}
	if !cfg.Compose.LegacyFallback {
		t.Error("expected LegacyFallback enabled by default")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("ENGINEROOM_DATA", "")
	t.Setenv("ENGINEROOM_DB", "")
	t.Setenv("ENGINEROOM_ASSETS", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Assets.Dir = "assets"
	cfg.Assets.Watch = true
	cfg.Compose.CacheSize = 64
	cfg.Compose.DefaultAudience = "researcher"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Assets.Dir != "assets" {
		t.Errorf("expected Assets.Dir=assets, got %s", loaded.Assets.Dir)
	}
	if !loaded.Assets.Watch {
		t.Error("expected Assets.Watch=true after round trip")
	}
	if loaded.Compose.CacheSize != 64 {
		t.Errorf("expected CacheSize=64, got %d", loaded.Compose.CacheSize)
	}
	if loaded.Compose.DefaultAudience != "researcher" {
		t.Errorf("expected DefaultAudience=researcher, got %s", loaded.Compose.DefaultAudience)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ENGINEROOM_DATA", "")
	t.Setenv("ENGINEROOM_DB", "")
	t.Setenv("ENGINEROOM_ASSETS", "")

	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error, got: %v", err)
	}
	if cfg.Name != "engineroom" {
		t.Errorf("expected default config, got Name=%s", cfg.Name)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got error: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Compose.CacheSize = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative cache size")
	}

	cfg = DefaultConfig()
	cfg.Compose.DefaultAudience = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty default audience")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}

	cfg = DefaultConfig()
	cfg.Assets.Watch = true
	cfg.Assets.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for watch without assets dir")
	}

	cfg = DefaultConfig()
	cfg.Propagation.MaxConcurrent = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero max_concurrent")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GetWatchDebounce() != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.GetWatchDebounce())
	}
	if cfg.GetWebhookTimeout() != 10*time.Second {
		t.Errorf("expected 10s webhook timeout, got %v", cfg.GetWebhookTimeout())
	}

	// Unparseable durations fall back to defaults
	cfg.Assets.WatchDebounce = "not-a-duration"
	if cfg.GetWatchDebounce() != 500*time.Millisecond {
		t.Error("GetWatchDebounce should fall back to 500ms on parse failure")
	}
	cfg.Propagation.WebhookTimeout = "soon"
	if cfg.GetWebhookTimeout() != 10*time.Second {
		t.Error("GetWebhookTimeout should fall back to 10s on parse failure")
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := &LoggingConfig{DebugMode: false}
	if lc.IsCategoryEnabled("compose") {
		t.Error("categories should be disabled when debug_mode=false")
	}

	lc = &LoggingConfig{DebugMode: true}
	if !lc.IsCategoryEnabled("compose") {
		t.Error("nil category map should enable everything in debug mode")
	}

	lc = &LoggingConfig{
		DebugMode:  true,
		Categories: map[string]bool{"compose": true, "watch": false},
	}
	if !lc.IsCategoryEnabled("compose") {
		t.Error("compose should be enabled")
	}
	if lc.IsCategoryEnabled("watch") {
		t.Error("watch should be disabled")
	}
	if !lc.IsCategoryEnabled("registry") {
		t.Error("unlisted category should default to enabled")
	}
}
