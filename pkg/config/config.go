// Package config provides configuration loading and management for resectionplan.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Control net parameters
	Grid struct {
		// Rows is the number of control points along the first surface parameter
		Rows int `yaml:"rows" toml:"rows"`

		// Cols is the number of control points along the second surface parameter
		Cols int `yaml:"cols" toml:"cols"`
	} `yaml:"grid" toml:"grid"`

	// Surface sampling parameters
	Surface struct {
		// DisplayResolution is the sample count (x, y) of the rendered surface
		DisplayResolution [2]int `yaml:"displayResolution" toml:"displayResolution"`

		// DistanceResolution is the sample count (x, y) of the surface used
		// for distance computation
		DistanceResolution [2]int `yaml:"distanceResolution" toml:"distanceResolution"`

		// ContinuousUpdate re-evaluates the surface and distances on every
		// pointer move instead of only at interaction end
		ContinuousUpdate bool `yaml:"continuousUpdate" toml:"continuousUpdate"`

		// ComputeNormals adds vertex normals to the evaluated surface
		ComputeNormals bool `yaml:"computeNormals" toml:"computeNormals"`
	} `yaml:"surface" toml:"surface"`

	// Proximity (distance map) parameters
	Proximity struct {
		// DefaultMargin is the safety margin in mm given to new resections
		DefaultMargin float64 `yaml:"defaultMargin" toml:"defaultMargin"`

		// UpperDistance is the last stop of the colour ramp in mm
		UpperDistance float64 `yaml:"upperDistance" toml:"upperDistance"`

		// NearColor is used for distances below the margin
		NearColor string `yaml:"nearColor" toml:"nearColor"`

		// FarColor is used for distances at or above the margin
		FarColor string `yaml:"farColor" toml:"farColor"`

		// ContourColor is used for the iso-line at the margin
		ContourColor string `yaml:"contourColor" toml:"contourColor"`
	} `yaml:"proximity" toml:"proximity"`

	// Widget appearance and interaction parameters
	Widget struct {
		// HandleSize is the fixed handle radius in world units
		HandleSize float64 `yaml:"handleSize" toml:"handleSize"`

		// HandleSizeFactor scales auto-sized handles
		HandleSizeFactor float64 `yaml:"handleSizeFactor" toml:"handleSizeFactor"`

		// HandlePixels is the on-screen handle radius used by auto-sizing
		HandlePixels float64 `yaml:"handlePixels" toml:"handlePixels"`

		// TubeSizeFactor is the control polygon tube radius relative to the handle radius
		TubeSizeFactor float64 `yaml:"tubeSizeFactor" toml:"tubeSizeFactor"`

		// AutoSize sizes handles from the viewport scale instead of HandleSize
		AutoSize bool `yaml:"autoSize" toml:"autoSize"`

		// MultiInteraction enables group drags with the secondary button
		MultiInteraction bool `yaml:"multiInteraction" toml:"multiInteraction"`

		// TranslationInteraction enables whole-net drags on the control polygon
		TranslationInteraction bool `yaml:"translationInteraction" toml:"translationInteraction"`
	} `yaml:"widget" toml:"widget"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// SnapshotWidth and SnapshotHeight size the headless viewport
		SnapshotWidth  int `yaml:"snapshotWidth" toml:"snapshotWidth"`
		SnapshotHeight int `yaml:"snapshotHeight" toml:"snapshotHeight"`
	} `yaml:"output" toml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Grid.Rows = 4
	cfg.Grid.Cols = 4

	cfg.Surface.DisplayResolution = [2]int{300, 300}
	cfg.Surface.DistanceResolution = [2]int{60, 60}
	cfg.Surface.ContinuousUpdate = false
	cfg.Surface.ComputeNormals = true

	cfg.Proximity.DefaultMargin = 10.0
	cfg.Proximity.UpperDistance = 100.0
	cfg.Proximity.NearColor = "#ff3333"
	cfg.Proximity.FarColor = "#ffffff"
	cfg.Proximity.ContourColor = "#ffff00"

	cfg.Widget.HandleSize = 3.0
	cfg.Widget.HandleSizeFactor = 1.1
	cfg.Widget.HandlePixels = 4.0
	cfg.Widget.TubeSizeFactor = 0.15
	cfg.Widget.AutoSize = false
	cfg.Widget.MultiInteraction = true
	cfg.Widget.TranslationInteraction = true

	cfg.Output.Verbose = false
	cfg.Output.SnapshotWidth = 512
	cfg.Output.SnapshotHeight = 512

	return cfg
}

// Validate reports the first configuration error found. The returned error
// wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Grid.Rows < 2 || c.Grid.Cols < 2 {
		return fmt.Errorf("%w: grid must be at least 2x2, got %dx%d", ErrInvalid, c.Grid.Rows, c.Grid.Cols)
	}
	for name, res := range map[string][2]int{
		"displayResolution":  c.Surface.DisplayResolution,
		"distanceResolution": c.Surface.DistanceResolution,
	} {
		if res[0] < 1 || res[1] < 1 {
			return fmt.Errorf("%w: %s must be positive, got %dx%d", ErrInvalid, name, res[0], res[1])
		}
	}
	if c.Proximity.DefaultMargin < 0 {
		return fmt.Errorf("%w: defaultMargin must not be negative", ErrInvalid)
	}
	if c.Proximity.UpperDistance <= c.Proximity.DefaultMargin {
		return fmt.Errorf("%w: upperDistance %.2f must exceed defaultMargin %.2f",
			ErrInvalid, c.Proximity.UpperDistance, c.Proximity.DefaultMargin)
	}
	for name, hex := range map[string]string{
		"nearColor":    c.Proximity.NearColor,
		"farColor":     c.Proximity.FarColor,
		"contourColor": c.Proximity.ContourColor,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalid, name, hex, err)
		}
	}
	if c.Widget.HandleSize <= 0 || c.Widget.TubeSizeFactor <= 0 {
		return fmt.Errorf("%w: handle and tube sizes must be positive", ErrInvalid)
	}
	return nil
}

// Colors parses the three proximity colours. Validate must have succeeded.
func (c *Config) Colors() (near, far, contour colorful.Color) {
	near, _ = colorful.Hex(c.Proximity.NearColor)
	far, _ = colorful.Hex(c.Proximity.FarColor)
	contour, _ = colorful.Hex(c.Proximity.ContourColor)
	return near, far, contour
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
