package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const appDirName = "human-api"

// Config holds all configuration for the application.
type Config struct {
	DBPath              string
	APIAddr             string
	LogLevel            slog.Level
	LogFormat           string
	DBMaxOpenConns      int
	DBBusyTimeout       time.Duration
	Argon2MaxConcurrent int64
	CORSOrigins         []string

	// EmbeddingBaseURL enables embedding sync when set.
	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingAPIKey     string
	EmbeddingDimensions int
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is
// loaded first. Environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", defaultDBPath()),
		APIAddr:     getEnv("API_ADDR", "127.0.0.1:9000"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CORSOrigins: splitList(getEnv("CORS_ORIGIN", "http://localhost:3000,http://127.0.0.1:3000")),

		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var err error
	if cfg.DBMaxOpenConns, err = getPositiveInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	busyMs, err := getPositiveInt("DB_BUSY_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.DBBusyTimeout = time.Duration(busyMs) * time.Millisecond

	argon, err := getPositiveInt("ARGON2_MAX_CONCURRENT", 2)
	if err != nil {
		return nil, err
	}
	cfg.Argon2MaxConcurrent = int64(argon)

	// 0 accepts whatever size the model returns.
	if raw := os.Getenv("EMBEDDING_DIMENSIONS"); raw != "" {
		if cfg.EmbeddingDimensions, err = getPositiveInt("EMBEDDING_DIMENSIONS", 0); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the nearest .env file, searching at most five levels up.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for range 5 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// defaultDBPath puts the database in the per-user config directory, or under
// ./data when the platform has none.
func defaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appDirName, "memories.db")
	}
	return filepath.Join(".", "data", "memories.db")
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
