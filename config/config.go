// Package config loads settings from the environment, with an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the CLI needs to assemble an agent.
type Config struct {
	// Bright Data SERP and dataset API access.
	BrightDataAPIURL string
	BrightDataAPIKey string
	Zone             string

	// Model access.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string

	// Executor tuning.
	NodeTimeout    time.Duration
	RunTimeout     time.Duration
	MaxConcurrency int

	// HistoryDBPath enables SQLite run history when set.
	HistoryDBPath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads .env (when present) and the process environment. Missing
// required settings are reported together.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set elsewhere.
	_ = godotenv.Load()

	cfg := &Config{
		BrightDataAPIURL: os.Getenv("BRIGHT_DATA_API_URL"),
		BrightDataAPIKey: os.Getenv("BRIGHT_DATA_API_KEY"),
		Zone:             os.Getenv("BRIGHT_DATA_ZONE"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		Model:            os.Getenv("OPENAI_MODEL"),
		HistoryDBPath:    os.Getenv("MULTISEARCH_HISTORY_DB"),
		LogLevel:         os.Getenv("MULTISEARCH_LOG_LEVEL"),
		NodeTimeout:      45 * time.Second,
		RunTimeout:       5 * time.Minute,
		MaxConcurrency:   4,
	}

	var err error
	if cfg.NodeTimeout, err = durationEnv("MULTISEARCH_NODE_TIMEOUT", cfg.NodeTimeout); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = durationEnv("MULTISEARCH_RUN_TIMEOUT", cfg.RunTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = intEnv("MULTISEARCH_MAX_CONCURRENCY", cfg.MaxConcurrency); err != nil {
		return nil, err
	}

	var missing []string
	if cfg.BrightDataAPIURL == "" {
		missing = append(missing, "BRIGHT_DATA_API_URL")
	}
	if cfg.BrightDataAPIKey == "" {
		missing = append(missing, "BRIGHT_DATA_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return d, nil
}

func intEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return n, nil
}
