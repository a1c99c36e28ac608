// Package config loads Cura's runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig holds everything the API server needs at startup.
type ServerConfig struct {
	Port        int
	DatabaseURL string
	// GeminiAPIKey authenticates calls to the processing models.
	GeminiAPIKey string

	// Reconciler tuning.
	PollInterval            time.Duration
	MaxConcurrentDispatches int64

	// Per-user daily quota for each processing mode.
	AnalyzeDailyLimit int
	BuildDailyLimit   int

	// IngestWithBrowser enables the headless-browser fallback when a job
	// posting page renders its content with JavaScript.
	IngestWithBrowser bool
}

// NewServerConfig reads the server configuration from environment
// variables. DATABASE_URL and GEMINI_API_KEY are required; everything else
// has a default.
func NewServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:                    getEnvInt("PORT", 8080),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		PollInterval:            getEnvDuration("TASK_POLL_INTERVAL", 3*time.Second),
		MaxConcurrentDispatches: int64(getEnvInt("TASK_MAX_DISPATCHES", 8)),
		AnalyzeDailyLimit:       getEnvInt("ANALYZE_DAILY_LIMIT", 20),
		BuildDailyLimit:         getEnvInt("BUILD_DAILY_LIMIT", 10),
		IngestWithBrowser:       getEnvBool("INGEST_USE_BROWSER", false),
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the configuration.
func (c *ServerConfig) normalize() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("TASK_POLL_INTERVAL too small: %s", c.PollInterval)
	}
	if c.MaxConcurrentDispatches < 1 {
		return fmt.Errorf("TASK_MAX_DISPATCHES must be at least 1, got: %d", c.MaxConcurrentDispatches)
	}
	if c.AnalyzeDailyLimit < 1 || c.BuildDailyLimit < 1 {
		return fmt.Errorf("daily limits must be at least 1")
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
