package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4*time.Second, cfg.Guidance.DedupWindow)
	assert.Equal(t, 1200*time.Millisecond, cfg.Simulation.TravelTick)
	assert.True(t, cfg.SimulatedMode(catalog.ModeMotor))
	assert.False(t, cfg.SimulatedMode(catalog.ModeMobil))
	assert.NotZero(t, cfg.AdvisoryCatalog().Len(), "built-in catalog used when none configured")
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
directions:
  api_key: file-key
simulation:
  modes: [motor, mobil]
catalog:
  - id: custom
    order: 1
    category: safety
    message: Pelan-pelan di tikungan
    modes: [motor]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.Directions.APIKey)
	assert.True(t, cfg.SimulatedMode(catalog.ModeMobil))

	cat := cfg.AdvisoryCatalog()
	assert.Equal(t, 1, cat.Len())
	got, ok := cat.ByID("custom")
	require.True(t, ok)
	assert.Equal(t, "Pelan-pelan di tikungan", got.Message)

	// Untouched sections keep defaults.
	assert.Equal(t, 15*time.Second, cfg.Guidance.DismissAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GUIDANCE_DIRECTIONS_API_KEY", "env-key")
	t.Setenv("GUIDANCE_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Directions.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_InvalidMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  modes: [helikopter]\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/guidance.yaml")
	assert.Error(t, err)
}
