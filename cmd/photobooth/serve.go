package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/gallery"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/hw/trigger"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/metrics"
	"github.com/cjeanneret/photobooth/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the photobooth web interface",
		Example: `  # Start on the configured port (default 8080)
  photobooth serve

  # Custom port and config
  photobooth serve --port 8980 --config configs/kiosk.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if port == 0 {
				if port, err = portFromEnv(); err != nil {
					return err
				}
			}
			if port != 0 {
				cfg.Web.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default $"+envPort+" or web.port)")
	return cmd
}

// portFromEnv reads PHOTOBOOTH_PORT; 0 when unset.
func portFromEnv() (int, error) {
	v := os.Getenv(envPort)
	if v == "" {
		return 0, nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return 0, fmt.Errorf("%s must be a port number 1-65535, got %q", envPort, v)
	}
	return p, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	debug.Section("Initialization")

	debug.Step(1, "Initializing camera")
	device, err := newCameraFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Camera config", cfg.Camera)

	debug.Step(2, "Opening gallery")
	store := newGalleryFromConfig(cfg)
	ids := gallery.NewIDSource(nil)
	if err := gallery.Seed(ids, store); err != nil {
		return fmt.Errorf("open gallery: %w", err)
	}

	mode, layout, f, err := sessionDefaults(cfg)
	if err != nil {
		return fmt.Errorf("session defaults: %w", err)
	}

	met := metrics.New()
	opts := capture.Options{
		Device:      device,
		Constraints: constraintsFromConfig(cfg),
		Gallery:     store,
		IDs:         ids,
		Saver:       export.NewDirSaver(cfg.Export.Dir),
		Quality:     cfg.Export.Quality,
		Observer:    met,
		Mode:        mode,
		Layout:      layout,
		Filter:      f,
	}

	var button *trigger.Button
	if cfg.Trigger.Enabled {
		debug.Step(3, "Initializing GPIO trigger")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			return fmt.Errorf("init GPIO: %w", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				debug.Error(fmt.Errorf("closing GPIO driver: %w", err))
			}
		}()
		debug.PrintStruct("Trigger config", cfg.Trigger)
		if cfg.Trigger.FlashPin > 0 {
			opts.Flash = trigger.NewFlash(gpioDriver, cfg.Trigger.FlashPin, cfg.FlashDuration())
		}
		button = trigger.NewButton(gpioDriver, cfg.Trigger.ButtonPin, cfg.PollInterval(), cfg.Debounce())
	}

	session := capture.NewSession(opts)
	debug.Value("Session", session.ID())
	if err := session.Start(ctx); err != nil {
		// The UI can retry through /session/start.
		debug.Error(err)
	}
	defer session.Stop()

	if button != nil {
		go func() {
			err := button.Watch(ctx, func() {
				met.IncButtonPresses()
				if _, accepted, err := session.Capture(ctx); err != nil {
					debug.Error(fmt.Errorf("button capture: %w", err))
				} else if !accepted {
					broadcaster.BroadcastMsg("Collage is full")
				}
				broadcaster.PublishStatus(session.Status())
			})
			if err != nil && ctx.Err() == nil {
				debug.Error(fmt.Errorf("shutter button: %w", err))
			}
		}()
	}

	staticFS, err := web.StaticFS()
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}
	handlers := web.NewHandlers(session, store, broadcaster, web.Defaults{
		Mode:    cfg.Defaults.Mode,
		Layout:  cfg.Defaults.Layout,
		Filter:  cfg.Defaults.Filter,
		Quality: cfg.Export.Quality,
	}, staticFS)

	debug.Summary(fmt.Sprintf("Photobooth ready on http://localhost:%d", cfg.Web.Port))
	srv := web.NewServer(fmt.Sprintf(":%d", cfg.Web.Port), handlers, met)
	return srv.Run(ctx)
}
