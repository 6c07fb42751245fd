package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/gallery"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
)

var (
	ErrNotReady        = errors.New("camera not started")
	ErrSuperseded      = errors.New("camera start superseded")
	ErrNoFrames        = errors.New("no frames captured")
	ErrNotEnoughFrames = errors.New("a collage needs at least two frames")
	ErrFrameNotFound   = errors.New("frame not found")
)

// Mode selects between one-shot photos and multi-shot collages.
type Mode int

const (
	Single Mode = iota
	Collage
)

func (m Mode) String() string {
	if m == Collage {
		return "collage"
	}
	return "single"
}

// MarshalText renders the mode by name in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode parses "single" or "collage".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "collage":
		return Collage, nil
	default:
		return Single, fmt.Errorf("unknown mode: %q", s)
	}
}

// Flasher lights the scene while a frame is read. Fire runs expose with
// the light on and returns expose's error joined with any flash failure.
type Flasher interface {
	Fire(expose func() error) error
}

// Observer receives session events (metrics).
type Observer interface {
	Captured(mode string, accepted bool)
	Composed(layout string, d time.Duration, err error)
	Exported(kind string)
	GalleryAppended()
}

type nopObserver struct{}

func (nopObserver) Captured(string, bool)                 {}
func (nopObserver) Composed(string, time.Duration, error) {}
func (nopObserver) Exported(string)                       {}
func (nopObserver) GalleryAppended()                      {}

// Options configures a Session. Device, Gallery and Saver are required.
type Options struct {
	Device      camera.Device
	Constraints camera.Constraints // zero = camera.DefaultConstraints()
	Gallery     gallery.Store
	IDs         *gallery.IDSource // nil = wall clock
	Saver       export.Saver
	Quality     int     // JPEG quality, 0 = export.DefaultQuality
	Flash       Flasher // optional
	Observer    Observer
	Now         func() time.Time

	Mode   Mode
	Layout collage.Layout // zero = 2x2
	Filter filter.Filter
}

// Status is a snapshot of the session.
type Status struct {
	ID     string        `json:"id"`
	Mode   Mode          `json:"mode"`
	Layout string        `json:"layout"`
	Filter string        `json:"filter"`
	Frames int           `json:"frames"`
	Slots  int           `json:"slots"`
	Ready  bool          `json:"ready"`
	Export collage.State `json:"export"`
	Width  int           `json:"width,omitempty"` // granted stream resolution
	Height int           `json:"height,omitempty"`
}

// Result is a finished export.
type Result struct {
	Trace    string // export trace id, also used in logs
	Filename string
	Data     []byte
	Entry    *gallery.Entry // gallery record, collages only
}

// Session owns the camera stream and the in-progress frame list. It is
// safe for concurrent use: HTTP handlers and the shutter button share it.
type Session struct {
	id       string
	device   camera.Device
	cons     camera.Constraints
	store    gallery.Store
	ids      *gallery.IDSource
	saver    export.Saver
	quality  int
	flash    Flasher
	observer Observer
	now      func() time.Time

	captureMu sync.Mutex // serializes device reads

	mu          sync.Mutex
	stream      camera.Stream
	gen         uint64 // bumped by every Start and Stop
	framesGen   uint64 // bumped whenever the frame list is cleared
	exportSeq   uint64 // bumped by every export and frame mutation
	mode        Mode
	layout      collage.Layout
	filter      filter.Filter
	frames      []collage.Frame
	nextID      int64
	exportState collage.State
}

// NewSession creates a stopped session.
func NewSession(o Options) *Session {
	s := &Session{
		id:       uuid.NewString(),
		device:   o.Device,
		cons:     o.Constraints,
		store:    o.Gallery,
		ids:      o.IDs,
		saver:    o.Saver,
		quality:  o.Quality,
		flash:    o.Flash,
		observer: o.Observer,
		now:      o.Now,
		mode:     o.Mode,
		layout:   o.Layout,
		filter:   o.Filter,
	}
	if s.cons == (camera.Constraints{}) {
		s.cons = camera.DefaultConstraints()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ids == nil {
		s.ids = gallery.NewIDSource(s.now)
	}
	if s.quality == 0 {
		s.quality = export.DefaultQuality
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.layout.Slots() == 0 {
		s.layout = collage.TwoByTwo
	}
	if s.filter.Key == "" {
		s.filter = filter.None
	}
	return s
}

// ID identifies the session in logs and status.
func (s *Session) ID() string { return s.id }

// Start releases any open stream and acquires a new one. The device is
// opened without holding the session lock; if Stop or another Start runs
// meanwhile, the late stream is closed and ErrSuperseded returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.closeStreamLocked()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	debug.Info("Session %s: opening camera (ideal %dx%d, %s)", s.id, s.cons.IdealWidth, s.cons.IdealHeight, s.cons.FacingMode)
	stream, err := s.device.Open(ctx, s.cons)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		if stream != nil {
			_ = stream.Close()
		}
		debug.Live("Session %s: camera start superseded", s.id)
		return ErrSuperseded
	}
	if err != nil {
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", camera.ErrDeviceUnavailable, err)
		}
		debug.Error(err)
		return fmt.Errorf("start camera: %w", err)
	}
	s.stream = stream
	size := stream.Size()
	debug.Info("Session %s: camera ready at %dx%d", s.id, size.X, size.Y)
	return nil
}

// Stop releases the stream. Calling it on a stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.closeStreamLocked()
}

func (s *Session) closeStreamLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		debug.Error(fmt.Errorf("close camera: %w", err))
	}
	s.stream = nil
	debug.Live("Session %s: camera released", s.id)
}

// Capture reads the current frame and adds it to the session. In collage
// mode a full session rejects the capture without touching the device
// (accepted is false, err is nil). In single mode the new frame replaces
// the previous one and its raw still is added to the gallery.
//
// The device is read without holding the session lock, so status queries
// are served during the exposure. If the camera is restarted or the frames
// are cleared meanwhile, the shot is dropped and ErrSuperseded returned.
func (s *Session) Capture(ctx context.Context) (frame collage.Frame, accepted bool, err error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return collage.Frame{}, false, ErrNotReady
	}
	mode, slots := s.mode, s.layout.Slots()
	if mode == Collage && len(s.frames) >= slots {
		used := len(s.frames)
		s.mu.Unlock()
		debug.Live("Capture rejected: %d/%d slots used", used, slots)
		s.observer.Captured(mode.String(), false)
		return collage.Frame{}, false, nil
	}
	stream, gen, framesGen, flt := s.stream, s.gen, s.framesGen, s.filter
	s.mu.Unlock()

	img, err := s.expose(ctx, stream)
	var still []byte
	if err == nil {
		still, err = export.Encode(img, s.quality)
	}

	s.mu.Lock()
	if gen != s.gen || framesGen != s.framesGen {
		s.mu.Unlock()
		debug.Live("Capture dropped: session changed during exposure")
		return collage.Frame{}, false, ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		return collage.Frame{}, false, fmt.Errorf("read frame: %w", err)
	}
	s.nextID++
	b := img.Bounds()
	frame = collage.Frame{
		ID:           s.nextID,
		Still:        still,
		Filter:       flt,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		CapturedAt:   s.now(),
	}
	if mode == Single {
		s.frames = []collage.Frame{frame}
	} else {
		s.frames = append(s.frames, frame)
	}
	count := len(s.frames)
	s.resetExportLocked()
	s.mu.Unlock()

	s.observer.Captured(mode.String(), true)
	if mode == Collage {
		debug.Capture(frame.ID, count, slots)
		return frame, true, nil
	}

	debug.Capture(frame.ID, 1, 1)
	entry := gallery.Entry{
		ID:        s.ids.Next(),
		URL:       export.DataURL(still),
		CreatedAt: frame.CapturedAt.UTC().Format(time.RFC3339),
	}
	if err := s.store.Append(entry); err != nil {
		return frame, true, fmt.Errorf("save to gallery: %w", err)
	}
	s.observer.GalleryAppended()
	return frame, true, nil
}

// expose reads one frame, lit by the flash when one is configured. A
// flash failure is logged and does not lose the shot.
func (s *Session) expose(ctx context.Context, stream camera.Stream) (image.Image, error) {
	var (
		img     image.Image
		readErr error
	)
	read := func() error {
		img, readErr = stream.ReadFrame(ctx)
		return readErr
	}
	if s.flash == nil {
		_ = read()
		return img, readErr
	}
	if err := s.flash.Fire(read); err != nil && readErr == nil {
		debug.Error(fmt.Errorf("flash: %w", err))
	}
	return img, readErr
}

// RemoveFrame drops the frame with the given id. Unknown ids are ignored.
func (s *Session) RemoveFrame(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.frames {
		if f.ID == id {
			s.frames = append(s.frames[:i:i], s.frames[i+1:]...)
			s.resetExportLocked()
			debug.Live("Frame %d removed (%d left)", id, len(s.frames))
			return true
		}
	}
	return false
}

// Reset clears the frames, restores the default filter and restarts the
// camera.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.clearLocked()
	s.filter = filter.None
	s.mu.Unlock()
	debug.Info("Session %s: reset", s.id)
	return s.Start(ctx)
}

// SetMode switches mode and clears the frames.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.clearLocked()
	debug.Info("Mode: %s", m)
}

// SetLayout switches layout and clears the frames.
func (s *Session) SetLayout(l collage.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l
	s.clearLocked()
	debug.Layout(l.Name, l.Slots(), l.Width, l.Height)
}

// SetFilter selects the filter stamped on subsequent captures.
func (s *Session) SetFilter(f filter.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	debug.Live("Filter: %s", f.Name)
}

func (s *Session) clearLocked() {
	s.frames = nil
	s.framesGen++
	s.resetExportLocked()
}

// resetExportLocked returns the export state to Idle and detaches any
// export still in flight, so it cannot overwrite the state when it ends.
func (s *Session) resetExportLocked() {
	s.exportSeq++
	s.exportState = collage.Idle
}

// Frames returns a copy of the captured frames in slot order.
func (s *Session) Frames() []collage.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]collage.Frame(nil), s.frames...)
}

// Frame returns one captured frame.
func (s *Session) Frame(id int64) (collage.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		if f.ID == id {
			return f, nil
		}
	}
	return collage.Frame{}, ErrFrameNotFound
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ID:     s.id,
		Mode:   s.mode,
		Layout: s.layout.Key,
		Filter: s.filter.Key,
		Frames: len(s.frames),
		Slots:  s.layout.Slots(),
		Ready:  s.stream != nil,
		Export: s.exportState,
	}
	if s.mode == Single {
		st.Slots = 1
	}
	if s.stream != nil {
		size := s.stream.Size()
		st.Width, st.Height = size.X, size.Y
	}
	return st
}

// Export renders the session output and hands it to the saver. A collage
// is also recorded in the gallery; the entry is written first and removed
// again if saving the file fails, so both exist or neither does. The
// frames stay in the session.
//
// Exports may overlap. Only the most recent one, and only while the frames
// are unchanged, updates the export state.
func (s *Session) Export(ctx context.Context) (Result, error) {
	s.mu.Lock()
	mode, layout := s.mode, s.layout
	frames := append([]collage.Frame(nil), s.frames...)
	switch {
	case len(frames) == 0:
		s.mu.Unlock()
		return Result{}, ErrNoFrames
	case mode == Collage && len(frames) < 2:
		s.mu.Unlock()
		return Result{}, ErrNotEnoughFrames
	}
	s.exportSeq++
	seq := s.exportSeq
	s.exportState = collage.Compositing
	s.mu.Unlock()

	trace := uuid.NewString()
	res, err := s.render(ctx, trace, mode, layout, frames)
	if err != nil {
		s.setExportState(seq, collage.Idle)
		return Result{}, err
	}
	s.setExportState(seq, collage.Ready)

	if mode == Collage {
		entry := gallery.Entry{
			ID:        s.ids.Next(),
			URL:       export.DataURL(res.Data),
			IsCollage: true,
			Layout:    layout.Key,
			CreatedAt: s.now().UTC().Format(time.RFC3339),
		}
		if err := s.store.Append(entry); err != nil {
			s.setExportState(seq, collage.Idle)
			return Result{}, fmt.Errorf("save to gallery: %w", err)
		}
		res.Entry = &entry
	}
	if err := s.saver.Save(res.Filename, res.Data); err != nil {
		if res.Entry != nil {
			if rmErr := s.store.Remove(res.Entry.ID); rmErr != nil {
				debug.Error(fmt.Errorf("export %s: roll back gallery entry %d: %w", trace, res.Entry.ID, rmErr))
			}
		}
		s.setExportState(seq, collage.Idle)
		return Result{}, fmt.Errorf("save export: %w", err)
	}
	if res.Entry != nil {
		s.observer.GalleryAppended()
	}
	s.setExportState(seq, collage.Exported)
	s.observer.Exported(mode.String())
	debug.Info("Export %s: saved %s (%d bytes)", trace, res.Filename, len(res.Data))
	return res, nil
}

func (s *Session) render(ctx context.Context, trace string, mode Mode, layout collage.Layout, frames []collage.Frame) (Result, error) {
	var (
		img  image.Image
		name string
		err  error
	)
	if mode == Collage {
		debug.Section("Compositing " + layout.Name + " (" + trace + ")")
		start := time.Now()
		img, err = collage.Compose(ctx, frames, layout)
		s.observer.Composed(layout.Key, time.Since(start), err)
		if err != nil {
			return Result{}, err
		}
		name = export.Filename(export.KindCollage, layout.Key, s.now())
	} else {
		debug.Verbose("Export %s: rendering frame %d", trace, frames[0].ID)
		img, err = frames[0].Render()
		if err != nil {
			return Result{}, fmt.Errorf("render frame %d: %w", frames[0].ID, err)
		}
		name = export.Filename(export.KindSingle, "", s.now())
	}
	data, err := export.Encode(img, s.quality)
	if err != nil {
		return Result{}, err
	}
	return Result{Trace: trace, Filename: name, Data: data}, nil
}

// setExportState applies st only if seq is still the latest export.
func (s *Session) setExportState(seq uint64, st collage.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.exportSeq {
		debug.Verbose("Export state %s ignored: export superseded", st)
		return
	}
	s.exportState = st
}
