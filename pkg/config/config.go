// Package config provides configuration loading and management for the
// perfusion analysis tool. It handles loading configuration from YAML files,
// applies environment overrides and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mask shapes accepted in Mask.Shape
const (
	ShapeSquare = "square"
	ShapeCircle = "circle"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// Threshold is the gradient value a frame must exceed to count as contrast arrival
		Threshold float64 `yaml:"threshold"`
	} `yaml:"analysis"`

	// Region of interest parameters
	Mask struct {
		// Shape selects the region strategy: "square" or "circle"
		Shape string `yaml:"shape"`

		// CenterX and CenterY locate the region center in pixels
		CenterX int `yaml:"centerX"`
		CenterY int `yaml:"centerY"`

		// Size is the side length of a square or the diameter of a circle
		Size int `yaml:"size"`
	} `yaml:"mask"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many frames are averaged in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// Plot draws the timecourse and gradient in the terminal
		Plot bool `yaml:"plot"`

		// PlotHeight is the number of rows used by each terminal plot
		PlotHeight int `yaml:"plotHeight"`

		// PeakImage is the JPEG path for the peak frame; empty disables it
		PeakImage string `yaml:"peakImage"`

		// WindowMin and WindowMax map intensities to black and white
		WindowMin float64 `yaml:"windowMin"`
		WindowMax float64 `yaml:"windowMax"`

		// Magnify is the pixel replication factor for the peak image
		Magnify int `yaml:"magnify"`

		// ReportFile is the YAML report path; empty disables it
		ReportFile string `yaml:"reportFile"`

		// Database is the SQLite results store path; empty disables it
		Database string `yaml:"database"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.Threshold = 10.0

	// Left-ventricular blood pool location for the reference acquisition
	cfg.Mask.Shape = ShapeSquare
	cfg.Mask.CenterX = 74
	cfg.Mask.CenterY = 90
	cfg.Mask.Size = 5

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Output.Verbose = false
	cfg.Output.Plot = true
	cfg.Output.PlotHeight = 12
	cfg.Output.WindowMin = 0
	cfg.Output.WindowMax = 200
	cfg.Output.Magnify = 3

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults; a path that cannot be read is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads a .env file from the working directory when one exists and
// then applies PERFUSION_* environment variables on top of cfg.
func (cfg *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	cfg.Analysis.Threshold = getEnvAsFloat("PERFUSION_THRESHOLD", cfg.Analysis.Threshold)
	cfg.Mask.Shape = getEnv("PERFUSION_MASK_SHAPE", cfg.Mask.Shape)
	cfg.Mask.CenterX = getEnvAsInt("PERFUSION_MASK_X", cfg.Mask.CenterX)
	cfg.Mask.CenterY = getEnvAsInt("PERFUSION_MASK_Y", cfg.Mask.CenterY)
	cfg.Mask.Size = getEnvAsInt("PERFUSION_MASK_SIZE", cfg.Mask.Size)
	cfg.Processing.NumCores = getEnvAsInt("PERFUSION_CORES", cfg.Processing.NumCores)
	cfg.Output.Database = getEnv("PERFUSION_DB", cfg.Output.Database)
	cfg.Output.Verbose = getEnvAsBool("PERFUSION_VERBOSE", cfg.Output.Verbose)
	return nil
}

// Validate checks that the configuration can drive an analysis
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Mask.Shape) {
	case ShapeSquare, ShapeCircle:
	default:
		return fmt.Errorf("unknown mask shape %q", cfg.Mask.Shape)
	}
	if cfg.Mask.Size <= 0 {
		return fmt.Errorf("mask size must be positive, got %d", cfg.Mask.Size)
	}
	if cfg.Output.Magnify <= 0 {
		return fmt.Errorf("magnify must be positive, got %d", cfg.Output.Magnify)
	}
	if cfg.Output.WindowMax <= cfg.Output.WindowMin {
		return fmt.Errorf("display window [%g, %g] is empty", cfg.Output.WindowMin, cfg.Output.WindowMax)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
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
	return SaveConfig(DefaultConfig(), configPath)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
