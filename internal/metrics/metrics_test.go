package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/notes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/notes/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/notes/{id}", "404"))
	if got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestNoteOpAndNilSafety(t *testing.T) {
	m := New()
	m.NoteOp("reorder", ResultOK)
	m.NoteOp("reorder", ResultOK)
	if got := testutil.ToFloat64(m.noteOps.WithLabelValues("reorder", ResultOK)); got != 2 {
		t.Errorf("operations_total = %v, want 2", got)
	}

	var nilMetrics *Metrics
	nilMetrics.NoteOp("create", ResultOK)
	nilMetrics.DocsReloaded()
	nilMetrics.TrackSSEClients(func() int { return 0 })
}

func TestHandlerExposesGauge(t *testing.T) {
	m := New()
	m.TrackSSEClients(func() int { return 3 })
	m.DocsReloaded()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, "folio_sse_clients 3") {
		t.Errorf("missing sse gauge in output")
	}
	if !strings.Contains(body, "folio_docs_reloads_total 1") {
		t.Errorf("missing docs counter in output")
	}
}
