// Package metrics exposes Prometheus collectors for the HTTP API and note operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "folio"

// Metrics owns a private registry so several servers can coexist in one process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// httpRequests counts served requests.
	// Labels: method, route (chi pattern), status
	httpRequests *prometheus.CounterVec

	// httpLatency measures handler latency.
	// Labels: method, route
	httpLatency *prometheus.HistogramVec

	// noteOps counts note store operations.
	// Labels: op (create, update, reorder, delete, reset), result (ok, rejected, error)
	noteOps *prometheus.CounterVec

	// docsReloads counts documentation files reloaded by the watcher.
	docsReloads prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		noteOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notes",
			Name:      "operations_total",
			Help:      "Note store operations by kind and result",
		}, []string{"op", "result"}),
		docsReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "docs",
			Name:      "reloads_total",
			Help:      "Documentation files reloaded after a change on disk",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request counts and latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Note operation results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// NoteOp records the outcome of a note store operation.
func (m *Metrics) NoteOp(op, result string) {
	if m == nil {
		return
	}
	m.noteOps.WithLabelValues(op, result).Inc()
}

// DocsReloaded records one reloaded documentation file.
func (m *Metrics) DocsReloaded() {
	if m == nil {
		return
	}
	m.docsReloads.Inc()
}

// TrackSSEClients exposes the live SSE client count as a gauge. Call at most once per Metrics.
func (m *Metrics) TrackSSEClients(count func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "clients",
		Help:      "Connected Server-Sent Events clients",
	}, func() float64 { return float64(count()) })
}
