package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// SnapshotDir is a Device backed by a directory that an external frame
// grabber keeps writing stills into (e.g. a webcam daemon or ffmpeg
// writing frame.jpg). ReadFrame returns the most recently modified still.
type SnapshotDir struct {
	Dir string
}

// NewSnapshotDir creates a directory-backed device.
func NewSnapshotDir(dir string) *SnapshotDir {
	return &SnapshotDir{Dir: dir}
}

// Open implements Device. The directory must exist and hold at least one
// still; the granted resolution is the one of the latest still.
func (d *SnapshotDir) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDeviceUnavailable, d.Dir)
	}

	s := &snapshotStream{dir: d.Dir}
	img, err := s.latest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.size = img.Bounds().Size()
	if c.IdealWidth > 0 && (s.size.X != c.IdealWidth || s.size.Y != c.IdealHeight) {
		debug.Verbose("Camera: requested %dx%d, grabber delivers %dx%d",
			c.IdealWidth, c.IdealHeight, s.size.X, s.size.Y)
	}
	debug.Device("Open (snapshot_dir)", s.size.X, s.size.Y)
	return s, nil
}

type snapshotStream struct {
	dir string

	mu     sync.Mutex
	size   image.Point
	closed bool
}

func (s *snapshotStream) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: stream closed", ErrDeviceUnavailable)
	}

	img, err := s.latest()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.size = img.Bounds().Size()
	s.mu.Unlock()
	debug.Device("ReadFrame (snapshot_dir)", s.size.X, s.size.Y)
	return img, nil
}

func (s *snapshotStream) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *snapshotStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// latest decodes the most recently modified JPEG or PNG in the directory.
func (s *snapshotStream) latest() (image.Image, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !isStill(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = e.Name(), mod
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no stills in %s", s.dir)
	}

	f, err := os.Open(filepath.Join(s.dir, newest))
	if err != nil {
		return nil, fmt.Errorf("open still: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode still %s: %w", newest, err)
	}
	return img, nil
}

func isStill(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
