package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
)

const (
	envConfig = "PHOTOBOOTH_CONFIG"
	envPort   = "PHOTOBOOTH_PORT"
)

var defaultConfigPath = filepath.Join("configs", "default.yaml")

type rootOptions struct {
	configPath string
	debugLevel int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "photobooth",
		Short: "Camera photobooth with filters, collages and a gallery",
		Long: `Photobooth drives a camera through a web interface: take single shots
or multi-frame collages, apply filters, and keep the results in a gallery.

A hardware shutter button and flash can be wired to GPIO on a Raspberry Pi.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file (default $"+envConfig+" or "+defaultConfigPath+")")
	cmd.PersistentFlags().IntVar(&opts.debugLevel, "debug", -1, "override debug level (0-4)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newComposeCmd(opts))
	cmd.AddCommand(newGalleryCmd(opts))
	return cmd
}

// resolveConfigPath picks the config file: explicit flag, then the
// environment, then the default location. explicit reports whether the
// file must exist.
func resolveConfigPath(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if v := os.Getenv(envConfig); v != "" {
		return v, true
	}
	return defaultConfigPath, false
}

// load reads the configuration and initializes the debug system. A missing
// default config file falls back to built-in defaults.
func (o *rootOptions) load() (*config.Config, error) {
	path, explicit := resolveConfigPath(o.configPath)
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
		path = "(built-in defaults)"
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.debugLevel >= 0 {
		if o.debugLevel > debug.LevelTrace {
			return nil, fmt.Errorf("debug level must be between 0 and 4, got %d", o.debugLevel)
		}
		cfg.Defaults.DebugLevel = o.debugLevel
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Value("Config path", path)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	return cfg, nil
}
