package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CameraConfig describes how to acquire the live video source.
// Type selects a concrete implementation ("mock" or "snapshot_dir").
type CameraConfig struct {
	Type        string `yaml:"type"`         // e.g., "mock"
	IdealWidth  int    `yaml:"ideal_width"`  // requested width (default 1920)
	IdealHeight int    `yaml:"ideal_height"` // requested height (default 1080)
	FacingMode  string `yaml:"facing_mode"`  // "environment" or "user"
	SnapshotDir string `yaml:"snapshot_dir"` // directory polled by snapshot_dir
	MockWidth   int    `yaml:"mock_width"`   // resolution granted by the mock device (0 = ideal)
	MockHeight  int    `yaml:"mock_height"`
}

// TriggerConfig describes the optional hardware shutter button and flash.
type TriggerConfig struct {
	Enabled    bool `yaml:"enabled"`
	ButtonPin  int  `yaml:"button_pin"`  // GPIO pin for the shutter button (active LOW)
	FlashPin   int  `yaml:"flash_pin"`   // GPIO pin for the flash LED. 0 = no flash.
	FlashMs    int  `yaml:"flash_ms"`    // flash warm-up before the frame is read (ms)
	PollMs     int  `yaml:"poll_ms"`     // button polling interval (ms)
	DebounceMs int  `yaml:"debounce_ms"` // button debounce window (ms)
}

// GalleryConfig locates the persisted gallery collection.
type GalleryConfig struct {
	Path string `yaml:"path"` // JSON file; empty = in-memory only
}

// ExportConfig controls encoded output.
type ExportConfig struct {
	Dir     string `yaml:"dir"`     // directory where exports are saved
	Quality int    `yaml:"quality"` // JPEG quality 1-100
}

// DefaultsConfig contains the initial session settings and generic parameters.
type DefaultsConfig struct {
	Mode       string `yaml:"mode"`        // "single" or "collage"
	Layout     string `yaml:"layout"`      // "2x2", "1+2", "3x1", "2x1"
	Filter     string `yaml:"filter"`      // "none", "vintage", "bw", "dreamy", "warm"
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Port int `yaml:"port"`
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Export   ExportConfig   `yaml:"export"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Web      WebConfig      `yaml:"web"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, validates it and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Camera.Type == "" {
		cfg.Camera.Type = "mock"
	}
	if cfg.Camera.Type == "snapshot_dir" && cfg.Camera.SnapshotDir == "" {
		return fmt.Errorf("camera.snapshot_dir is required for type snapshot_dir")
	}
	if cfg.Camera.IdealWidth <= 0 {
		cfg.Camera.IdealWidth = 1920
	}
	if cfg.Camera.IdealHeight <= 0 {
		cfg.Camera.IdealHeight = 1080
	}
	switch cfg.Camera.FacingMode {
	case "":
		cfg.Camera.FacingMode = "environment"
	case "environment", "user":
	default:
		return fmt.Errorf("camera.facing_mode must be environment or user, got %q", cfg.Camera.FacingMode)
	}

	if cfg.Export.Quality == 0 {
		cfg.Export.Quality = 90
	}
	if cfg.Export.Quality < 1 || cfg.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100, got %d", cfg.Export.Quality)
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "exports"
	}

	if cfg.Trigger.Enabled && cfg.Trigger.ButtonPin <= 0 {
		return fmt.Errorf("trigger.button_pin is required when trigger is enabled")
	}
	if cfg.Trigger.FlashMs <= 0 {
		cfg.Trigger.FlashMs = 150 // 150ms flash pulse
	}
	if cfg.Trigger.PollMs <= 0 {
		cfg.Trigger.PollMs = 20 // 20ms button polling
	}
	if cfg.Trigger.DebounceMs <= 0 {
		cfg.Trigger.DebounceMs = 300 // 300ms between accepted presses
	}

	switch cfg.Defaults.Mode {
	case "":
		cfg.Defaults.Mode = "single"
	case "single", "collage":
	default:
		return fmt.Errorf("defaults.mode must be single or collage, got %q", cfg.Defaults.Mode)
	}
	if cfg.Defaults.Layout == "" {
		cfg.Defaults.Layout = "2x2"
	}
	if cfg.Defaults.Filter == "" {
		cfg.Defaults.Filter = "none"
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	if cfg.Web.Port < 0 || cfg.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 0-65535, got %d", cfg.Web.Port)
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	return nil
}

// FlashDuration returns how long the flash is lit before the frame is read.
func (c *Config) FlashDuration() time.Duration {
	return time.Duration(c.Trigger.FlashMs) * time.Millisecond
}

// PollInterval returns the shutter button polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trigger.PollMs) * time.Millisecond
}

// Debounce returns the minimum interval between two accepted button presses.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Trigger.DebounceMs) * time.Millisecond
}
