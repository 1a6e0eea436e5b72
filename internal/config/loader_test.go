package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Studio.Host)
		assert.Equal(t, 3002, cfg.Studio.Port)
		assert.Equal(t, 30000, cfg.Relay.TimeoutMs)
		assert.Equal(t, 200, cfg.Relay.PollIntervalMs)
	})

	t.Run("loads values from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "studiobridge.json")

		content := `{
			"studio": {"host": "0.0.0.0", "port": 9090},
			"relay": {"timeout_ms": 5000, "poll_interval_ms": 100},
			"logging": {"level": "debug"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		loader := NewLoader(configPath)
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Studio.Host)
		assert.Equal(t, 9090, cfg.Studio.Port)
		assert.Equal(t, 5000, cfg.Relay.TimeoutMs)
		assert.Equal(t, 100, cfg.Relay.PollIntervalMs)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("fills derived paths", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.Logging.AuditFile)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "studiobridge.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		loader := NewLoader(configPath)
		_, err := loader.Load()
		assert.Error(t, err)
	})
}

func TestLoader_Save(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "studiobridge.json")

	loader := NewLoader(configPath)
	cfg := DefaultConfig()
	cfg.Studio.Port = 4444

	require.NoError(t, loader.Save(cfg))

	reloaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 4444, reloaded.Studio.Port)
}
