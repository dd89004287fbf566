package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Paths(t *testing.T) {
	t.Run("ENGINEROOM_DATA relocates data dir and database", func(t *testing.T) {
		t.Setenv("ENGINEROOM_DATA", "/var/lib/engineroom")
		t.Setenv("ENGINEROOM_DB", "")
		t.Setenv("ENGINEROOM_ASSETS", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/var/lib/engineroom", cfg.Data.Dir)
		assert.Equal(t, filepath.Join("/var/lib/engineroom", "console.db"), cfg.Data.DatabasePath)
	})

	t.Run("ENGINEROOM_DB wins over ENGINEROOM_DATA derived path", func(t *testing.T) {
		t.Setenv("ENGINEROOM_DATA", "/var/lib/engineroom")
		t.Setenv("ENGINEROOM_DB", "/mnt/fast/console.db")
		t.Setenv("ENGINEROOM_ASSETS", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/var/lib/engineroom", cfg.Data.Dir)
		assert.Equal(t, "/mnt/fast/console.db", cfg.Data.DatabasePath)
	})

	t.Run("ENGINEROOM_ASSETS sets the override directory", func(t *testing.T) {
		t.Setenv("ENGINEROOM_DATA", "")
		t.Setenv("ENGINEROOM_DB", "")
		t.Setenv("ENGINEROOM_ASSETS", "/opt/engineroom/assets")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/opt/engineroom/assets", cfg.Assets.Dir)
	})

	t.Run("empty env vars leave defaults alone", func(t *testing.T) {
		t.Setenv("ENGINEROOM_DATA", "")
		t.Setenv("ENGINEROOM_DB", "")
		t.Setenv("ENGINEROOM_ASSETS", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ".engineroom", cfg.Data.Dir)
		assert.Equal(t, filepath.Join(".engineroom", "console.db"), cfg.Data.DatabasePath)
		assert.Empty(t, cfg.Assets.Dir)
	})
}

func TestEnvOverrides_AppliedByLoad(t *testing.T) {
	t.Run("applied when config file is missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "custom.db")
		t.Setenv("ENGINEROOM_DATA", "")
		t.Setenv("ENGINEROOM_DB", dbPath)
		t.Setenv("ENGINEROOM_ASSETS", "")

		cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, dbPath, cfg.Data.DatabasePath)
	})

	t.Run("env var overrides file value", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "config.yaml")

		content := "data:\n  dir: .engineroom\n  database_path: from-file.db\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		t.Setenv("ENGINEROOM_DATA", "")
		t.Setenv("ENGINEROOM_DB", "from-env.db")
		t.Setenv("ENGINEROOM_ASSETS", "")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.Data.DatabasePath)
	})
}
