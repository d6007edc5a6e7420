package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.TickPeriod)
	assert.Equal(t, "15 min | 5 sec", cfg.DefaultPreset)
	assert.True(t, cfg.Sound)
	assert.Empty(t, cfg.APIKeys)
	assert.Empty(t, cfg.DatabasePath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_KEYS", "alpha,beta")
	t.Setenv("CLOCK_TICK_PERIOD", "250ms")
	t.Setenv("CLOCK_PAUSE_FEEDBACK", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys)
	assert.Equal(t, 250*time.Millisecond, cfg.TickPeriod)
	assert.Equal(t, 1, cfg.PauseFeedback)
}

func TestLoadFromDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLOCK_DB_PATH=/tmp/clock/games.db\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CLOCK_DB_PATH") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/clock/games.db", cfg.DatabasePath)
}

func TestValidate(t *testing.T) {
	t.Setenv("CLOCK_PAUSE_FEEDBACK", "3")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	cfg := Config{Port: "8080", TickPeriod: 0}
	assert.Error(t, cfg.Validate())
}
