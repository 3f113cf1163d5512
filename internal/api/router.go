package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/noteservice"
)

// Deps are the collaborators mounted by NewRouter and NewServer. Docs, Uploads, Events and Metrics are
// optional; their routes are skipped when nil.
type Deps struct {
	Notes   *noteservice.Service
	Docs    *docs.Service
	Uploads *UploadHandler
	Events  http.Handler
	Metrics *metrics.Metrics

	AuthEnabled bool
	AuthToken   string
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter creates the chi router served under /api. Every route sits behind the auth middleware.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d.Notes, d.Logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.AuthToken))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/tree", h.Tree)
		r.Delete("/reset/all", h.ResetNotes)
		r.Get("/{id}", h.GetNote)
		r.Patch("/{id}", h.UpdateNote)
		r.Patch("/{id}/reorder", h.ReorderNote)
		r.Delete("/{id}", h.DeleteNote)
	})

	r.Get("/search", h.Search)

	if d.Docs != nil {
		dh := NewDocsHandler(d.Docs, d.Logger)
		r.Route("/docs", func(r chi.Router) {
			r.Get("/tree", dh.Tree)
			r.Get("/status", dh.Status)
			r.Get("/pulse", dh.Pulse)
			r.Get("/search", dh.Search)
			r.Get("/{id}", dh.Doc)
		})
	}

	if d.Uploads != nil {
		r.Post("/uploads", d.Uploads.Upload)
	}

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}

// NewServer builds the top-level handler: shared middleware, health checks, /metrics, uploaded files and
// the API under /api.
func NewServer(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	ok := func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
	r.Get("/health", ok)
	r.Get("/health/live", ok)
	r.Get("/health/ready", readiness(d.Notes.Ping))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Uploads != nil {
		r.Get("/uploads/{name}", d.Uploads.ServeFile)
	}

	r.Mount("/api", NewRouter(d))
	return r
}

func readiness(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}
