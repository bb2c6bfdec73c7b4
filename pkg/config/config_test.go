package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Grid.Rows)
	assert.Equal(t, 4, cfg.Grid.Cols)
	assert.Equal(t, [2]int{300, 300}, cfg.Surface.DisplayResolution)
	assert.Less(t, cfg.Surface.DistanceResolution[0], cfg.Surface.DisplayResolution[0])
	assert.Equal(t, 100.0, cfg.Proximity.UpperDistance)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"small grid", func(c *Config) { c.Grid.Rows = 1 }},
		{"zero display resolution", func(c *Config) { c.Surface.DisplayResolution = [2]int{0, 10} }},
		{"zero distance resolution", func(c *Config) { c.Surface.DistanceResolution = [2]int{10, 0} }},
		{"negative margin", func(c *Config) { c.Proximity.DefaultMargin = -1 }},
		{"upper below margin", func(c *Config) { c.Proximity.UpperDistance = 5 }},
		{"bad colour", func(c *Config) { c.Proximity.NearColor = "red" }},
		{"zero handle", func(c *Config) { c.Widget.HandleSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "planner.yaml")
	cfg := DefaultConfig()
	cfg.Proximity.DefaultMargin = 7.5
	cfg.Surface.ContinuousUpdate = true
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7.5, loaded.Proximity.DefaultMargin)
	assert.True(t, loaded.Surface.ContinuousUpdate)
}

func TestSaveLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.toml")
	cfg := DefaultConfig()
	cfg.Grid.Rows = 5
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Grid.Rows)
	assert.Equal(t, cfg.Proximity.NearColor, loaded.Proximity.NearColor)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("proximity:\n  defaultMargin: 4\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Proximity.DefaultMargin)
	assert.Equal(t, 4, cfg.Grid.Rows)
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  rows: 1\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestColors(t *testing.T) {
	near, far, contour := DefaultConfig().Colors()
	assert.InDelta(t, 1.0, near.R, 1e-9)
	assert.InDelta(t, 1.0, far.G, 1e-9)
	assert.InDelta(t, 0.0, contour.B, 1e-9)
}
