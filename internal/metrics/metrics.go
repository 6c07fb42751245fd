package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the photobooth.
// It satisfies capture.Observer.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	capturesTotal   *prometheus.CounterVec
	compositesTotal *prometheus.CounterVec
	composeSeconds  prometheus.Histogram
	exportsTotal    *prometheus.CounterVec
	galleryAppended prometheus.Counter
	galleryEntries  prometheus.Gauge
	buttonPresses   prometheus.Counter
}

// New creates and registers Prometheus metrics for the photobooth.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photobooth_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photobooth_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	capturesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_captures_total",
		Help: "Capture requests by mode and outcome (accepted or rejected)",
	}, []string{"mode", "outcome"})
	compositesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_composites_total",
		Help: "Collage compositions by layout and result",
	}, []string{"layout", "result"})
	composeSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photobooth_compose_duration_seconds",
		Help:    "Time spent composing a collage",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photobooth_exports_total",
		Help: "Saved exports by kind (single or collage)",
	}, []string{"kind"})
	galleryAppended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photobooth_gallery_appended_total",
		Help: "Total number of entries added to the gallery",
	})
	galleryEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "photobooth_gallery_entries",
		Help: "Number of entries currently in the gallery",
	})
	buttonPresses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photobooth_button_presses_total",
		Help: "Total number of hardware shutter button presses",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		capturesTotal,
		compositesTotal,
		composeSeconds,
		exportsTotal,
		galleryAppended,
		galleryEntries,
		buttonPresses,
	)

	return &Metrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		errorsTotal:     errorsTotal,
		capturesTotal:   capturesTotal,
		compositesTotal: compositesTotal,
		composeSeconds:  composeSeconds,
		exportsTotal:    exportsTotal,
		galleryAppended: galleryAppended,
		galleryEntries:  galleryEntries,
		buttonPresses:   buttonPresses,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncButtonPresses increments the shutter button counter.
func (m *Metrics) IncButtonPresses() {
	m.buttonPresses.Inc()
}

// SetGalleryEntries sets the gallery size gauge.
func (m *Metrics) SetGalleryEntries(n int) {
	m.galleryEntries.Set(float64(n))
}

// Captured records a capture attempt.
func (m *Metrics) Captured(mode string, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.capturesTotal.WithLabelValues(mode, outcome).Inc()
}

// Composed records a finished or failed collage composition.
func (m *Metrics) Composed(layout string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.compositesTotal.WithLabelValues(layout, result).Inc()
	m.composeSeconds.Observe(d.Seconds())
}

// Exported records a saved export.
func (m *Metrics) Exported(kind string) {
	m.exportsTotal.WithLabelValues(kind).Inc()
}

// GalleryAppended records a new gallery entry.
func (m *Metrics) GalleryAppended() {
	m.galleryAppended.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. gallery size).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
