package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// MockDevice is a test implementation that renders a synthetic test
// pattern. Used for development on PC or testing.
type MockDevice struct {
	// Width and Height force the granted resolution. Zero means the ideal
	// resolution from the constraints is granted.
	Width, Height int
	// Fail makes Open return ErrDeviceUnavailable (permission denied).
	Fail bool

	mu    sync.Mutex
	open  int
	opens int
}

// NewMockDevice creates a mock device granting the given resolution
// (0, 0 = grant whatever is requested).
func NewMockDevice(width, height int) *MockDevice {
	return &MockDevice{Width: width, Height: height}
}

// Open implements Device.
func (m *MockDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, fmt.Errorf("%w: permission denied (mock)", ErrDeviceUnavailable)
	}

	w, h := m.Width, m.Height
	if w <= 0 || h <= 0 {
		w, h = c.IdealWidth, c.IdealHeight
	}
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	m.open++
	m.opens++
	debug.Device("Open (mock)", w, h)
	return &mockStream{dev: m, size: image.Pt(w, h)}, nil
}

// SetFail toggles simulated permission failures.
func (m *MockDevice) SetFail(fail bool) {
	m.mu.Lock()
	m.Fail = fail
	m.mu.Unlock()
}

// OpenStreams returns the number of streams currently open.
func (m *MockDevice) OpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Opens returns the total number of successful Open calls.
func (m *MockDevice) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type mockStream struct {
	dev    *MockDevice
	size   image.Point
	frames atomic.Int64
	closed atomic.Bool
}

func (s *mockStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: stream closed", ErrDeviceUnavailable)
	}
	n := s.frames.Add(1)
	debug.Device(fmt.Sprintf("ReadFrame #%d (mock)", n), s.size.X, s.size.Y)
	return TestPattern(s.size.X, s.size.Y, uint8(n*37)), nil
}

func (s *mockStream) Size() image.Point { return s.size }

func (s *mockStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.dev.mu.Lock()
	s.dev.open--
	s.dev.mu.Unlock()
	debug.Trace("Camera Close (mock)")
	return nil
}

// TestPattern renders four colored quadrants with a phase-dependent
// diagonal gradient, so crops and placement are visible in the output.
func TestPattern(w, h int, phase uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c color.RGBA
			switch {
			case x < w/2 && y < h/2:
				c = color.RGBA{220, 40, 40, 255}
			case y < h/2:
				c = color.RGBA{40, 180, 60, 255}
			case x < w/2:
				c = color.RGBA{40, 60, 220, 255}
			default:
				c = color.RGBA{230, 200, 40, 255}
			}
			g := uint8((x + y + int(phase)) % 32)
			c.R = satAdd(c.R, g)
			c.G = satAdd(c.G, g)
			c.B = satAdd(c.B, g)
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func satAdd(a, b uint8) uint8 {
	if int(a)+int(b) > 255 {
		return 255
	}
	return a + b
}
