package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
)

// Handler holds the note route handlers.
type Handler struct {
	svc    *noteservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List all notes, roots first, then by position
//	@Tags			notes
//	@Produce		json
//	@Success		200	{array}	models.Note
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "list notes", err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// Tree handles GET /api/notes/tree.
//
//	@Summary		Nested note tree with cycles broken at the offending edge
//	@Tags			notes
//	@Produce		json
//	@Success		200	{array}	tree.Node
//	@Security		BearerAuth
//	@Router			/notes/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.svc.Tree(r.Context())
	if err != nil {
		writeError(w, h.logger, "note tree", err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note at the end of its parent's children
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.NoteCreate	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var in models.NoteCreate
	if !decodeJSON(w, r, &in) {
		return
	}
	n, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Partially update a note; changing parent_id re-normalises both parents
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		models.NoteUpdate	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var u models.NoteUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	n, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, h.logger, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ReorderNote handles PATCH /api/notes/{id}/reorder.
//
//	@Summary		Move a note to a position, optionally under a new parent
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		ReorderRequest	true	"Target parent and position"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/reorder [patch]
func (h *Handler) ReorderNote(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Position == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("position is required"))
		return
	}
	n, err := h.svc.Reorder(r.Context(), chi.URLParam(r, "id"), req.model())
	if err != nil {
		writeError(w, h.logger, "reorder note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and all of its descendants
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetNotes handles DELETE /api/notes/reset/all.
func (h *Handler) ResetNotes(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		writeError(w, h.logger, "reset notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across note titles and content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, h.logger, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
