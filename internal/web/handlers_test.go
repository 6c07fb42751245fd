package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/gallery"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/metrics"
)

// ---------- Helpers ----------

type testEnv struct {
	router  http.Handler
	session *capture.Session
	device  *camera.MockDevice
	store   *gallery.MemoryStore
	saved   map[string][]byte
}

func newTestEnv(t *testing.T, mode capture.Mode) *testEnv {
	t.Helper()
	env := &testEnv{
		device: camera.NewMockDevice(160, 120),
		store:  gallery.NewMemoryStore(),
		saved:  make(map[string][]byte),
	}
	env.session = capture.NewSession(capture.Options{
		Device:  env.device,
		Gallery: env.store,
		Saver: export.SaverFunc(func(name string, data []byte) error {
			env.saved[name] = data
			return nil
		}),
		Mode:   mode,
		Layout: collage.TwoByOne,
	})
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
		"app.js":     &fstest.MapFile{Data: []byte("// app")},
	}
	h := NewHandlers(env.session, env.store, NewStatusBroadcaster(),
		Defaults{Mode: "single", Layout: "2x2", Filter: "none", Quality: 90}, staticFS)
	env.router = NewServer(":0", h, metrics.New()).Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) start(t *testing.T) {
	t.Helper()
	if w := env.do(t, http.MethodPost, "/session/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start: status = %d (%s)", w.Code, w.Body.String())
	}
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) capture.Status {
	t.Helper()
	var st capture.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// ---------- Static and config ----------

func TestServeIndex(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	w := env.do(t, http.MethodGet, "/", nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	w := env.do(t, http.MethodGet, "/static/app.js", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "// app") {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestEmbeddedStatic(t *testing.T) {
	fsys, err := StaticFS()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"index.html", "app.js", "style.css"} {
		if _, err := fsys.Open(name); err != nil {
			t.Errorf("embedded %s: %v", name, err)
		}
	}
}

func TestHandleConfig(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	w := env.do(t, http.MethodGet, "/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cv configView
	if err := json.NewDecoder(w.Body).Decode(&cv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cv.Filters) != 5 || len(cv.Layouts) != 4 {
		t.Errorf("filters = %d, layouts = %d; want 5, 4", len(cv.Filters), len(cv.Layouts))
	}
	if cv.Filters[1].CSS != "sepia(0.8) contrast(1.2)" {
		t.Errorf("vintage css = %q", cv.Filters[1].CSS)
	}
	if cv.Layouts[2].Key != "3x1" || cv.Layouts[2].Height != 1350 {
		t.Errorf("layout 3x1 = %+v", cv.Layouts[2])
	}
	if cv.Defaults.Quality != 90 {
		t.Errorf("defaults = %+v", cv.Defaults)
	}
}

// ---------- Session ----------

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, capture.Collage)

	st := decodeStatus(t, env.do(t, http.MethodGet, "/session", nil))
	if st.Ready {
		t.Error("ready before start")
	}
	env.start(t)
	st = decodeStatus(t, env.do(t, http.MethodGet, "/session", nil))
	if !st.Ready || st.Width != 160 {
		t.Errorf("status after start = %+v", st)
	}

	w := env.do(t, http.MethodPost, "/session/stop", nil)
	if st := decodeStatus(t, w); st.Ready {
		t.Error("ready after stop")
	}
	if env.device.OpenStreams() != 0 {
		t.Error("stream left open")
	}
}

func TestStart_DeviceUnavailable(t *testing.T) {
	env := newTestEnv(t, capture.Collage)
	env.device.SetFail(true)
	w := env.do(t, http.MethodPost, "/session/start", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestSetters(t *testing.T) {
	env := newTestEnv(t, capture.Single)

	cases := []struct {
		path string
		body any
		code int
	}{
		{"/session/mode", map[string]string{"mode": "collage"}, http.StatusOK},
		{"/session/mode", map[string]string{"mode": "burst"}, http.StatusBadRequest},
		{"/session/layout", map[string]string{"layout": "1+2"}, http.StatusOK},
		{"/session/layout", map[string]string{"layout": "9x9"}, http.StatusBadRequest},
		{"/session/filter", map[string]string{"filter": "sepia(0.8) contrast(1.2)"}, http.StatusOK},
		{"/session/filter", map[string]string{"filter": "blur(2px)"}, http.StatusBadRequest},
		{"/session/filter", "not json", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := env.do(t, http.MethodPut, tc.path, tc.body)
		if w.Code != tc.code {
			t.Errorf("PUT %s %v: status = %d, want %d", tc.path, tc.body, w.Code, tc.code)
		}
	}

	st := decodeStatus(t, env.do(t, http.MethodGet, "/session", nil))
	if st.Mode != capture.Collage || st.Layout != "1+2" || st.Filter != "vintage" || st.Slots != 3 {
		t.Errorf("status = %+v", st)
	}
}

func TestOversizedBody(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	big := `{"mode":"` + strings.Repeat("x", 2<<20) + `"}`
	w := env.do(t, http.MethodPut, "/session/mode", big)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d (oversized body)", w.Code, http.StatusBadRequest)
	}
}

// ---------- Capture, frames and export ----------

func TestCapture_NotReady(t *testing.T) {
	env := newTestEnv(t, capture.Collage)
	w := env.do(t, http.MethodPost, "/capture", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestCollageFlow(t *testing.T) {
	env := newTestEnv(t, capture.Collage)
	env.start(t)
	env.do(t, http.MethodPut, "/session/filter", map[string]string{"filter": "bw"})

	var ids []int64
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/capture", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("capture %d: status = %d", i, w.Code)
		}
		var resp captureResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if want := i < 2; resp.Accepted != want {
			t.Errorf("capture %d accepted = %v, want %v", i, resp.Accepted, want)
		}
		if resp.Frame != nil {
			ids = append(ids, resp.Frame.ID)
			if resp.Frame.Filter != "bw" || resp.Frame.SourceWidth != 160 {
				t.Errorf("frame = %+v", resp.Frame)
			}
		}
	}

	w := env.do(t, http.MethodGet, "/frames", nil)
	var frames []frameView
	if err := json.NewDecoder(w.Body).Decode(&frames); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}

	w = env.do(t, http.MethodGet, "/frames/"+strconv.FormatInt(ids[0], 10), nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("frame preview: status = %d type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	if _, err := export.Decode(w.Body.Bytes()); err != nil {
		t.Errorf("frame preview is not a JPEG: %v", err)
	}

	w = env.do(t, http.MethodPost, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status = %d (%s)", w.Code, w.Body.String())
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `filename="collage-2x1-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	img, err := export.Decode(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 540 {
		t.Errorf("export size = %v, want 1080x540", b.Size())
	}
	if len(env.saved) != 1 {
		t.Errorf("saved exports = %d, want 1", len(env.saved))
	}
	if trace := w.Header().Get("X-Trace-Id"); trace == "" {
		t.Error("export response has no X-Trace-Id")
	}
	galleryID := w.Header().Get("X-Gallery-Id")
	entries, _ := env.store.List()
	if len(entries) != 1 || strconv.FormatInt(entries[0].ID, 10) != galleryID || !entries[0].IsCollage {
		t.Errorf("gallery = %+v (header id %q)", entries, galleryID)
	}

	w = env.do(t, http.MethodDelete, "/frames/"+strconv.FormatInt(ids[0], 10), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete frame: status = %d", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/frames/"+strconv.FormatInt(ids[0], 10), nil); w.Code != http.StatusNotFound {
		t.Errorf("removed frame: status = %d, want 404", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/export", nil); w.Code != http.StatusConflict {
		t.Errorf("export with one frame: status = %d, want 409", w.Code)
	}
}

func TestFrames_InvalidID(t *testing.T) {
	env := newTestEnv(t, capture.Collage)
	if w := env.do(t, http.MethodGet, "/frames/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------- Gallery ----------

func TestGallery(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	env.start(t)

	w := env.do(t, http.MethodGet, "/gallery", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty gallery = %q, want []", w.Body.String())
	}

	if w := env.do(t, http.MethodPost, "/capture", nil); w.Code != http.StatusOK {
		t.Fatalf("capture: status = %d", w.Code)
	}
	var entries []gallery.Entry
	w = env.do(t, http.MethodGet, "/gallery", nil)
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].IsCollage {
		t.Fatalf("entries = %+v", entries)
	}
	id := strconv.FormatInt(entries[0].ID, 10)

	w = env.do(t, http.MethodGet, "/gallery/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download: status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="photo-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if _, err := export.Decode(w.Body.Bytes()); err != nil {
		t.Errorf("download is not a JPEG: %v", err)
	}

	if w := env.do(t, http.MethodDelete, "/gallery/"+id, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/gallery/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted entry: status = %d, want 404", w.Code)
	}
}

// ---------- Metrics ----------

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, capture.Single)
	env.do(t, http.MethodGet, "/config", nil)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "photobooth_requests_total") {
		t.Error("metrics missing request counter")
	}
	if !strings.Contains(w.Body.String(), "photobooth_gallery_entries 0") {
		t.Error("metrics missing gallery gauge")
	}
}

// ---------- Error mapping ----------

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{camera.ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{capture.ErrNotReady, http.StatusConflict},
		{capture.ErrSuperseded, http.StatusConflict},
		{capture.ErrNotEnoughFrames, http.StatusConflict},
		{gallery.ErrNotFound, http.StatusNotFound},
		{collage.ErrCompositionFailed, http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
