package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadWithDataDir points the config at a temp data dir so Load never touches
// /var/lib/watchtower on the machine running the tests.
func loadWithDataDir(t *testing.T) *Config {
	t.Helper()
	t.Setenv("WATCHTOWER_DATA_DIR", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadWithDataDir(t)

	assert.Equal(t, "0.0.0.0", cfg.ListenHost)
	assert.Equal(t, 5000, cfg.ListenPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, "http://localhost:8080", cfg.SourceURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.HistoryRetention)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Equal(t, 80.0, cfg.ThresholdCPU)
	assert.Equal(t, 85.0, cfg.ThresholdMemory)
	assert.Equal(t, 90.0, cfg.ThresholdDisk)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("WATCHTOWER_DATA_DIR", t.TempDir())
	t.Setenv("WATCHTOWER_HOST", "127.0.0.1")
	t.Setenv("WATCHTOWER_PORT", "8088")
	t.Setenv("WATCHTOWER_SOURCE_URL", "http://metrics.internal:9000")
	t.Setenv("WATCHTOWER_POLL_INTERVAL", "30")
	t.Setenv("WATCHTOWER_FETCH_TIMEOUT", "3")
	t.Setenv("WATCHTOWER_HISTORY_RETENTION_HOURS", "48")
	t.Setenv("WATCHTOWER_LOG_LEVEL", "debug")
	t.Setenv("WATCHTOWER_THRESHOLD_CPU", "70.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.ListenAddr())
	assert.Equal(t, "http://metrics.internal:9000", cfg.SourceURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 48*time.Hour, cfg.HistoryRetention)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 70.5, cfg.ThresholdCPU)
	assert.Equal(t, 85.0, cfg.ThresholdMemory, "untouched thresholds keep their defaults")
}

func TestLoadKeepsDefaultsOnInvalidOverrides(t *testing.T) {
	t.Setenv("WATCHTOWER_DATA_DIR", t.TempDir())
	t.Setenv("WATCHTOWER_PORT", "not-a-port")
	t.Setenv("WATCHTOWER_POLL_INTERVAL", "-5")
	t.Setenv("WATCHTOWER_THRESHOLD_DISK", "ninety")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.ListenPort)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 90.0, cfg.ThresholdDisk)
}

func TestLoadReadsDotEnvFromDataDir(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("WATCHTOWER_DATA_DIR", dataDir)

	env := "WATCHTOWER_SOURCE_URL=http://from-dotenv:8080\nWATCHTOWER_THRESHOLD_MEMORY=75\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".env"), []byte(env), 0o600))

	// godotenv writes into the process environment; undo it so other tests
	// still see a clean slate.
	t.Cleanup(func() {
		os.Unsetenv("WATCHTOWER_SOURCE_URL")
		os.Unsetenv("WATCHTOWER_THRESHOLD_MEMORY")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv:8080", cfg.SourceURL)
	assert.Equal(t, 75.0, cfg.ThresholdMemory)
}

func TestDerivedPaths(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("WATCHTOWER_DATA_DIR", dataDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "thresholds.json"), cfg.ThresholdsFile())
	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.HistoryFile())
	assert.Equal(t, "0.0.0.0:9091", cfg.MetricsAddr())
}
