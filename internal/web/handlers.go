package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/gallery"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Defaults echoes the configured initial settings to the UI.
type Defaults struct {
	Mode    string `json:"mode"`
	Layout  string `json:"layout"`
	Filter  string `json:"filter"`
	Quality int    `json:"quality"`
}

type filterView struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	CSS  string `json:"css"`
}

type layoutView struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Slots  int    `json:"slots"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type configView struct {
	Filters  []filterView `json:"filters"`
	Layouts  []layoutView `json:"layouts"`
	Defaults Defaults     `json:"defaults"`
}

type frameView struct {
	ID           int64     `json:"id"`
	Filter       string    `json:"filter"`
	CSS          string    `json:"css"`
	SourceWidth  int       `json:"sourceWidth"`
	SourceHeight int       `json:"sourceHeight"`
	CapturedAt   time.Time `json:"capturedAt"`
}

func newFrameView(f collage.Frame) frameView {
	return frameView{
		ID:           f.ID,
		Filter:       f.Filter.Key,
		CSS:          f.Filter.CSS(),
		SourceWidth:  f.SourceWidth,
		SourceHeight: f.SourceHeight,
		CapturedAt:   f.CapturedAt,
	}
}

type captureResponse struct {
	Accepted bool           `json:"accepted"`
	Frame    *frameView     `json:"frame,omitempty"`
	Session  capture.Status `json:"session"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Session     *capture.Session
	Gallery     gallery.Store
	Broadcaster *StatusBroadcaster
	Defaults    Defaults
	staticFS    fs.FS
	now         func() time.Time
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(session *capture.Session, store gallery.Store, broadcaster *StatusBroadcaster, defaults Defaults, staticFS fs.FS) *Handlers {
	return &Handlers{
		Session:     session,
		Gallery:     store,
		Broadcaster: broadcaster,
		Defaults:    defaults,
		staticFS:    staticFS,
		now:         time.Now,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleConfig returns the available filters and layouts and the
// configured defaults.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cv := configView{Defaults: h.Defaults}
	for _, f := range filter.All() {
		cv.Filters = append(cv.Filters, filterView{Key: f.Key, Name: f.Name, CSS: f.CSS()})
	}
	for _, l := range collage.All() {
		cv.Layouts = append(cv.Layouts, layoutView{Key: l.Key, Name: l.Name, Slots: l.Slots(), Width: l.Width, Height: l.Height})
	}
	writeJSON(w, http.StatusOK, cv)
}

// HandleStatus handles GET /session.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Status())
}

// HandleStart handles POST /session/start.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Start(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	h.respondStatus(w)
}

// HandleStop handles POST /session/stop.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.Session.Stop()
	h.respondStatus(w)
}

// HandleReset handles POST /session/reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Reset(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	h.respondStatus(w)
}

// HandleSetMode handles PUT /session/mode with {"mode":"collage"}.
func (h *Handlers) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := capture.ParseMode(body.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Session.SetMode(m)
	h.respondStatus(w)
}

// HandleSetLayout handles PUT /session/layout with {"layout":"2x2"}.
func (h *Handlers) HandleSetLayout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Layout string `json:"layout"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	l, err := collage.Lookup(body.Layout)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Session.SetLayout(l)
	h.respondStatus(w)
}

// HandleSetFilter handles PUT /session/filter with {"filter":"bw"}. The
// value may be a key, a display name or a CSS filter string.
func (h *Handlers) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter string `json:"filter"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	f, err := filter.Lookup(body.Filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Session.SetFilter(f)
	h.respondStatus(w)
}

// HandleCapture handles POST /capture. A full collage answers 200 with
// accepted=false.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	frame, accepted, err := h.Session.Capture(r.Context())
	if err != nil && !accepted {
		h.fail(w, err)
		return
	}
	if err != nil {
		// Captured, but the gallery write failed.
		debug.Error(err)
		h.Broadcaster.Broadcast("error", err.Error())
	}
	resp := captureResponse{Accepted: accepted, Session: h.Session.Status()}
	if accepted {
		fv := newFrameView(frame)
		resp.Frame = &fv
	}
	h.Broadcaster.PublishStatus(resp.Session)
	writeJSON(w, http.StatusOK, resp)
}

// HandleFrames handles GET /frames.
func (h *Handlers) HandleFrames(w http.ResponseWriter, r *http.Request) {
	frames := h.Session.Frames()
	out := make([]frameView, len(frames))
	for i, f := range frames {
		out[i] = newFrameView(f)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleFrame handles GET /frames/{id}: the still rendered with its filter.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	f, err := h.Session.Frame(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	data := f.Still
	if !f.Filter.IsIdentity() {
		img, err := f.Render()
		if err != nil {
			h.fail(w, err)
			return
		}
		if data, err = export.Encode(img, h.Defaults.Quality); err != nil {
			h.fail(w, err)
			return
		}
	}
	writeJPEG(w, data, "")
}

// HandleRemoveFrame handles DELETE /frames/{id}.
func (h *Handlers) HandleRemoveFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	h.Session.RemoveFrame(id)
	h.Broadcaster.PublishStatus(h.Session.Status())
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport handles POST /export and answers with the JPEG.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.Export(r.Context())
	h.Broadcaster.PublishStatus(h.Session.Status())
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("X-Trace-Id", res.Trace)
	if res.Entry != nil {
		w.Header().Set("X-Gallery-Id", strconv.FormatInt(res.Entry.ID, 10))
	}
	h.Broadcaster.BroadcastMsg("Exported " + res.Filename)
	writeJPEG(w, res.Data, res.Filename)
}

// HandleGalleryList handles GET /gallery.
func (h *Handlers) HandleGalleryList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Gallery.List()
	if err != nil {
		h.fail(w, err)
		return
	}
	if entries == nil {
		entries = []gallery.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGalleryGet handles GET /gallery/{id}: the entry as a JPEG download.
func (h *Handlers) HandleGalleryGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	e, err := h.Gallery.Get(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	data, err := export.ParseDataURL(e.URL)
	if err != nil {
		h.fail(w, fmt.Errorf("gallery entry %d: %w", id, err))
		return
	}
	writeJPEG(w, data, export.Filename(export.KindGallery, "", h.now()))
}

// HandleGalleryRemove handles DELETE /gallery/{id}.
func (h *Handlers) HandleGalleryRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Gallery.Remove(id); err != nil {
		h.fail(w, err)
		return
	}
	debug.Live("Gallery entry %d removed", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Initial snapshot so the page can render immediately
	w.Write([]byte(": connected\n\n"))
	if snap, err := json.Marshal(StatusEvent{Time: h.now().Format(time.RFC3339), Level: "status", Session: ptr(h.Session.Status())}); err == nil {
		w.Write([]byte("data: " + string(snap) + "\n\n"))
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func ptr[T any](v T) *T { return &v }

func (h *Handlers) respondStatus(w http.ResponseWriter) {
	st := h.Session.Status()
	h.Broadcaster.PublishStatus(st)
	writeJSON(w, http.StatusOK, st)
}

// fail maps domain errors onto HTTP status codes.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		debug.Error(err)
	}
	http.Error(w, err.Error(), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrNotReady),
		errors.Is(err, capture.ErrSuperseded),
		errors.Is(err, capture.ErrNoFrames),
		errors.Is(err, capture.ErrNotEnoughFrames):
		return http.StatusConflict
	case errors.Is(err, collage.ErrTooManyFrames):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrNotFound), errors.Is(err, capture.ErrFrameNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeJPEG sends image bytes, as an attachment when filename is set.
func writeJPEG(w http.ResponseWriter, data []byte, filename string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.Write(data)
}
