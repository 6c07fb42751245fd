package camera

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable is returned when the camera cannot be acquired:
// permission denied, no matching device, or the device is gone.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// Constraints describe the preferred capture settings. Devices treat them
// as hints and may grant a different resolution.
type Constraints struct {
	IdealWidth  int
	IdealHeight int
	FacingMode  string // "environment" or "user"
}

// DefaultConstraints returns the preferred photobooth capture settings.
func DefaultConstraints() Constraints {
	return Constraints{IdealWidth: 1920, IdealHeight: 1080, FacingMode: "environment"}
}

// Device is the high-level interface used by the rest of the application.
// It represents an abstract camera, regardless of how frames are obtained
// (test pattern, frame grabber directory, USB, network protocol, etc.).
type Device interface {
	// Open acquires a live stream. It blocks until the device grants a
	// stream or fails; failures wrap ErrDeviceUnavailable.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open live feed. Exactly one Stream should be open per
// session at a time.
type Stream interface {
	// ReadFrame returns the current frame at the stream's native resolution.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Size returns the granted resolution.
	Size() image.Point
	// Close releases the device handle. It is safe to call more than once.
	Close() error
}
