package main

import (
	"fmt"
	"strconv"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/gallery"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
)

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case "mock":
		return camera.NewMockDevice(cfg.Camera.MockWidth, cfg.Camera.MockHeight), nil
	case "snapshot_dir":
		return camera.NewSnapshotDir(cfg.Camera.SnapshotDir), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

func constraintsFromConfig(cfg *config.Config) camera.Constraints {
	return camera.Constraints{
		IdealWidth:  cfg.Camera.IdealWidth,
		IdealHeight: cfg.Camera.IdealHeight,
		FacingMode:  cfg.Camera.FacingMode,
	}
}

// newGalleryFromConfig opens the gallery store: a JSON file when a path is
// configured, memory otherwise.
func newGalleryFromConfig(cfg *config.Config) gallery.Store {
	if cfg.Gallery.Path == "" {
		debug.Info("Gallery: in memory (not persisted)")
		return gallery.NewMemoryStore()
	}
	debug.Info("Gallery: %s", cfg.Gallery.Path)
	return gallery.NewFileStore(cfg.Gallery.Path)
}

// sessionDefaults parses the initial mode, layout and filter.
func sessionDefaults(cfg *config.Config) (capture.Mode, collage.Layout, filter.Filter, error) {
	mode, err := capture.ParseMode(cfg.Defaults.Mode)
	if err != nil {
		return 0, collage.Layout{}, filter.Filter{}, err
	}
	layout, err := collage.Lookup(cfg.Defaults.Layout)
	if err != nil {
		return 0, collage.Layout{}, filter.Filter{}, err
	}
	f, err := filter.Lookup(cfg.Defaults.Filter)
	if err != nil {
		return 0, collage.Layout{}, filter.Filter{}, err
	}
	return mode, layout, f, nil
}

// parseID parses a gallery entry id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
