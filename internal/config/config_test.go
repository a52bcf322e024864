package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.DataPath)
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("MODELFORGE_PORT", "9090")
	t.Setenv("MODELFORGE_DATA_PATH", "/tmp/modelforge.sqlite")
	t.Setenv("MODELFORGE_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/modelforge.sqlite", cfg.DataPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}
