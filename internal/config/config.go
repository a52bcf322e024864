// Package config loads process configuration from the environment, the way
// the teacher's various cmd entrypoints read individual os.Getenv values
// with hardcoded fallbacks.
package config

import (
	"os"

	"github.com/modelforge/modelforge/internal/store"
)

// Config is the process-wide configuration for cmd/arena.
type Config struct {
	// Port is the HTTP listen port for the Control API and SSE stream.
	Port string
	// DataPath is the sqlite file path (see store.DefaultDataPath).
	DataPath string
	// LogLevel is parsed by logrus.ParseLevel; invalid values fall back to info.
	LogLevel string
}

// Load reads configuration from the environment; it does not read a .env
// file itself (cmd/arena loads one via godotenv before calling Load). Unset
// variables fall back to defaults matching the teacher's
// os.Getenv-with-fallback style.
func Load() Config {
	return Config{
		Port:     getEnv("MODELFORGE_PORT", "8080"),
		DataPath: getEnv("MODELFORGE_DATA_PATH", store.DefaultDataPath()),
		LogLevel: getEnv("MODELFORGE_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
