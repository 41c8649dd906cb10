// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/CoffeeShop-Development/watchtower/internal/utils"
)

// Config holds the runtime configuration for the watchtower server.
type Config struct {
	ListenHost  string
	ListenPort  int
	MetricsPort int

	SourceURL    string        // base URL of the metrics aggregation server
	PollInterval time.Duration // cadence of the fetch/evaluate/publish cycle
	FetchTimeout time.Duration // upper bound for one upstream fetch

	DataDir string // thresholds file and alert history database live here

	HistoryRetention time.Duration // how long fired alerts are kept in the history log

	LogLevel  string
	LogFormat string

	// Startup threshold defaults; runtime updates go through the API and
	// are persisted separately.
	ThresholdCPU    float64
	ThresholdMemory float64
	ThresholdDisk   float64
}

// ThresholdsFile returns the path of the persisted threshold configuration.
func (c *Config) ThresholdsFile() string {
	return filepath.Join(c.DataDir, "thresholds.json")
}

// HistoryFile returns the path of the alert history database.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ListenAddr returns the host:port the API server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// MetricsAddr returns the host:port the Prometheus endpoint binds to.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.MetricsPort)
}

// Load builds the configuration from defaults, an optional .env file and
// WATCHTOWER_* environment overrides. Invalid override values are logged
// and the default is kept.
func Load() (*Config, error) {
	dataDir := "/var/lib/watchtower"
	if dir := utils.GetenvTrim("WATCHTOWER_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	// Load .env from the data dir for deployment overrides, then from the
	// working directory for development.
	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Info().Str("file", envFile).Msg("Loaded .env file for deployment overrides")
		}
	}
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	// Data dir may itself come from the .env file.
	if dir := utils.GetenvTrim("WATCHTOWER_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	cfg := &Config{
		ListenHost:       "0.0.0.0",
		ListenPort:       5000,
		MetricsPort:      9091,
		SourceURL:        "http://localhost:8080",
		PollInterval:     10 * time.Second,
		FetchTimeout:     5 * time.Second,
		DataDir:          dataDir,
		HistoryRetention: 7 * 24 * time.Hour,
		LogLevel:         "info",
		LogFormat:        "auto",
		ThresholdCPU:     80,
		ThresholdMemory:  85,
		ThresholdDisk:    90,
	}

	if host := utils.GetenvTrim("WATCHTOWER_HOST"); host != "" {
		cfg.ListenHost = host
	}
	overrideInt("WATCHTOWER_PORT", &cfg.ListenPort)
	overrideInt("WATCHTOWER_METRICS_PORT", &cfg.MetricsPort)
	if url := utils.GetenvTrim("WATCHTOWER_SOURCE_URL"); url != "" {
		cfg.SourceURL = url
	}
	overrideSeconds("WATCHTOWER_POLL_INTERVAL", &cfg.PollInterval)
	overrideSeconds("WATCHTOWER_FETCH_TIMEOUT", &cfg.FetchTimeout)
	overrideHours("WATCHTOWER_HISTORY_RETENTION_HOURS", &cfg.HistoryRetention)
	if level := utils.GetenvTrim("WATCHTOWER_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := utils.GetenvTrim("WATCHTOWER_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
	overrideFloat("WATCHTOWER_THRESHOLD_CPU", &cfg.ThresholdCPU)
	overrideFloat("WATCHTOWER_THRESHOLD_MEMORY", &cfg.ThresholdMemory)
	overrideFloat("WATCHTOWER_THRESHOLD_DISK", &cfg.ThresholdDisk)

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", cfg.FetchTimeout)
	}

	return cfg, nil
}

func overrideInt(key string, target *int) {
	raw := utils.GetenvTrim(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid integer override, keeping default")
		return
	}
	*target = value
}

func overrideFloat(key string, target *float64) {
	raw := utils.GetenvTrim(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid float override, keeping default")
		return
	}
	*target = value
}

func overrideSeconds(key string, target *time.Duration) {
	raw := utils.GetenvTrim(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration override, keeping default")
		return
	}
	*target = time.Duration(value) * time.Second
}

func overrideHours(key string, target *time.Duration) {
	raw := utils.GetenvTrim(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration override, keeping default")
		return
	}
	*target = time.Duration(value) * time.Hour
}
