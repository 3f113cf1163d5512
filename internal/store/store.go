package store

import (
	"context"
	"time"

	"github.com/starford/folio/internal/models"
)

// NoteStore defines the persistence operations behind the note API.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteStore interface {
	List(ctx context.Context) ([]models.Note, error)
	Get(ctx context.Context, id string) (*models.Note, error)
	Create(ctx context.Context, n models.Note) (*models.Note, error)
	Update(ctx context.Context, id string, u models.NoteUpdate, now time.Time) (*models.Note, error)
	Reorder(ctx context.Context, id string, r models.NoteReorder, now time.Time) (*models.Note, error)
	Children(ctx context.Context, parentID *string) ([]models.Note, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
