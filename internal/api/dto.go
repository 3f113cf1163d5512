package api

import (
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/store"
)

// ReorderRequest is the body of PATCH /notes/{id}/reorder. Position is required; a missing parent_id
// moves the note to the root level.
type ReorderRequest struct {
	ParentID *string `json:"parent_id" example:"3f2c..."`
	Position *int    `json:"position" example:"0" validate:"required"`
}

func (r ReorderRequest) model() models.NoteReorder {
	return models.NoteReorder{ParentID: r.ParentID, Position: *r.Position}
}

// SearchResponse wraps note search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	URL      string `json:"url" example:"/uploads/0f8e...c1.png" validate:"required"`
	Filename string `json:"filename" example:"diagram.png" validate:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}
