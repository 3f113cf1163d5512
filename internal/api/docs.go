package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docs"
)

// DocsHandler serves the read-only documentation mirror.
type DocsHandler struct {
	svc    *docs.Service
	logger *slog.Logger
}

// NewDocsHandler creates a DocsHandler.
func NewDocsHandler(svc *docs.Service, logger *slog.Logger) *DocsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocsHandler{svc: svc, logger: logger}
}

// Tree handles GET /api/docs/tree.
func (h *DocsHandler) Tree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Tree())
}

// Status handles GET /api/docs/status.
func (h *DocsHandler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Pulse handles GET /api/docs/pulse.
func (h *DocsHandler) Pulse(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Pulse())
}

// Search handles GET /api/docs/search?q=.
func (h *DocsHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Search(r.URL.Query().Get("q"), 0)
	if err != nil {
		writeError(w, h.logger, "docs search", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Doc handles GET /api/docs/{id}.
func (h *DocsHandler) Doc(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Doc(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get doc", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
