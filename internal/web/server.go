package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	metrics  *metrics.Metrics
}

// NewServer creates a server for the given address. m may be nil to
// disable /metrics.
func NewServer(addr string, handlers *Handlers, m *metrics.Metrics) *Server {
	return &Server{
		addr:     addr,
		handlers: handlers,
		metrics:  m,
	}
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler(s.updateGauges))
	}

	r.Get("/", h.ServeIndex)
	r.Get("/config", h.HandleConfig)
	r.Get("/status/stream", h.HandleStatusStream)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Post("/start", h.HandleStart)
		r.Post("/stop", h.HandleStop)
		r.Post("/reset", h.HandleReset)
		r.Put("/mode", h.HandleSetMode)
		r.Put("/layout", h.HandleSetLayout)
		r.Put("/filter", h.HandleSetFilter)
	})
	r.Post("/capture", h.HandleCapture)
	r.Route("/frames", func(r chi.Router) {
		r.Get("/", h.HandleFrames)
		r.Get("/{id}", h.HandleFrame)
		r.Delete("/{id}", h.HandleRemoveFrame)
	})
	r.Post("/export", h.HandleExport)
	r.Route("/gallery", func(r chi.Router) {
		r.Get("/", h.HandleGalleryList)
		r.Get("/{id}", h.HandleGalleryGet)
		r.Delete("/{id}", h.HandleGalleryRemove)
	})
	return r
}

func (s *Server) updateGauges() {
	if entries, err := s.handlers.Gallery.List(); err == nil {
		s.metrics.SetGalleryEntries(len(entries))
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		debug.Info("Shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
