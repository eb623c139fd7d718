package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all flowcore configuration.
// Priority: env vars > .env file > settings.json > defaults.
type Config struct {
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	PoolSize      int    `json:"pool_size"`
	HTTPTimeout   string `json:"http_timeout"`
	VaultKey      string `json:"-"`
	OpenAIKey     string `json:"-"`
	OpenAIBaseURL string `json:"openai_base_url"`
	Model         string `json:"model"`
	RedisURL      string `json:"redis_url"`
	MemoryTurns   int    `json:"memory_turns"`
	MaxIterations int    `json:"max_iterations"`
}

func defaultConfig() Config {
	return Config{
		DBPath:        filepath.Join(flowcoreDir(), "flowcore.db"),
		LogLevel:      "info",
		PoolSize:      10,
		HTTPTimeout:   "30s",
		MemoryTurns:   10,
		MaxIterations: 10,
	}
}

func flowcoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowcore"
	}
	return filepath.Join(home, ".flowcore")
}

func settingsPath() string {
	return filepath.Join(flowcoreDir(), "settings.json")
}

func loadConfig() (Config, error) {
	return loadConfigFrom(settingsPath(), ".env")
}

// loadConfigFrom layers settingsFile and envFile over the defaults. Missing
// files are skipped; a malformed one is an error.
func loadConfigFrom(settingsFile, envFile string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json.
	if data, err := os.ReadFile(settingsFile); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	// Layer 3: .env never overrides variables already set.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	// Layer 4: env vars override.
	if v := os.Getenv("FLOWCORE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWCORE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("FLOWCORE_HTTP_TIMEOUT"); v != "" {
		cfg.HTTPTimeout = v
	}
	if v := os.Getenv("FLOWCORE_VAULT_KEY"); v != "" {
		cfg.VaultKey = v
	}
	if v := os.Getenv("FLOWCORE_OPENAI_API_KEY"); v != "" {
		cfg.OpenAIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIKey = v
	}
	if v := os.Getenv("FLOWCORE_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("FLOWCORE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("FLOWCORE_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("FLOWCORE_MEMORY_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MemoryTurns = n
		}
	}
	if v := os.Getenv("FLOWCORE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}

	return cfg, nil
}

// callTimeout parses HTTPTimeout, falling back to 30s.
func (c Config) callTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c Config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
