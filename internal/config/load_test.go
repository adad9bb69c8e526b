package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, int64(500*1024*1024), cfg.Server.MaxUploadBytes)

	assert.Equal(t, "data/tasks_state.json", cfg.Storage.SnapshotPath)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, "downloads", cfg.Storage.OutputDir)

	assert.Equal(t, 24, cfg.Janitor.RetentionHours)
	assert.Equal(t, 60, cfg.Janitor.SweepIntervalMin)
	assert.Equal(t, 15, cfg.Janitor.IdleTimeoutMin)
	assert.False(t, cfg.Janitor.IdleShutdown)
	assert.True(t, cfg.Janitor.IdleShutdownDryRun)

	assert.Equal(t, "whisper-cli", cfg.Whisper.BinaryPath)
	assert.Equal(t, "he", cfg.Whisper.Language)
	assert.Equal(t, 4, cfg.Whisper.Threads)

	assert.Empty(t, cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 8000, cfg.LLM.SummaryCharBudget)

	assert.Empty(t, cfg.Diarize.ServiceURL)
	assert.Empty(t, cfg.Watch.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("TAMLIL_SERVER_PORT", "8080")
	t.Setenv("TAMLIL_WHISPER_LANGUAGE", "en")
	t.Setenv("TAMLIL_JANITOR_IDLE_SHUTDOWN", "true")
	t.Setenv("TAMLIL_LLM_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "en", cfg.Whisper.Language)
	assert.True(t, cfg.Janitor.IdleShutdown)
	assert.Equal(t, "test-key", cfg.LLM.GeminiAPIKey)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
  log_level: debug
watch:
  dir: /data/inbox
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/data/inbox", cfg.Watch.Dir)
	// Untouched sections keep their defaults.
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
}

func TestLoadValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("TAMLIL_SERVER_LOG_LEVEL", "verbose")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("bad diarize url", func(t *testing.T) {
		t.Setenv("TAMLIL_DIARIZE_SERVICE_URL", "not-a-url")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{{nope"), 0o644))
		t.Chdir(dir)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})
}
