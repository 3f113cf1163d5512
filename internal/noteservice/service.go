// Package noteservice validates note requests and coordinates the store, change events and metrics.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/store"
	"github.com/starford/folio/internal/tree"
)

// MaxTitleLength bounds note titles.
const MaxTitleLength = 255

// Publisher receives note change events.
type Publisher interface {
	PublishNoteEvent(ev sse.NoteEvent)
}

// Service is the single entry point for note mutations used by the HTTP API and the MCP server.
type Service struct {
	store   store.NoteStore
	pub     Publisher
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a note service.
func New(st store.NoteStore, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns every note as a flat list.
func (s *Service) List(ctx context.Context) ([]models.Note, error) {
	return s.store.List(ctx)
}

// Get returns one note.
func (s *Service) Get(ctx context.Context, id string) (*models.Note, error) {
	return s.store.Get(ctx, id)
}

// Tree returns the cycle-safe nested tree of all notes.
func (s *Service) Tree(ctx context.Context) ([]*tree.Node, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Build(notes), nil
}

// Search runs a full-text query over titles and content.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if err := validation.Validate(query, validation.Required); err != nil {
		return nil, fmt.Errorf("%w: q %v", apperr.ErrValidation, err)
	}
	return s.store.Search(ctx, query, limit)
}

// Create validates in and appends a new note at the end of its parent's children.
func (s *Service) Create(ctx context.Context, in models.NoteCreate) (*models.Note, error) {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&in.ParentID, validation.NilOrNotEmpty),
	)
	if err != nil {
		return nil, s.done("create", fmt.Errorf("%w: %v", apperr.ErrValidation, err))
	}

	now := s.now()
	n, err := s.store.Create(ctx, models.Note{
		ID:        s.newID(),
		Title:     in.Title,
		Content:   in.Content,
		Sidenote:  in.Sidenote,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, s.done("create", err)
	}
	s.done("create", nil)
	s.publish(sse.EventNoteCreated, n)
	return n, nil
}

// Update applies a partial update. Changing parent_id is validated like a move.
func (s *Service) Update(ctx context.Context, id string, u models.NoteUpdate) (*models.Note, error) {
	if u.Empty() {
		return nil, s.done("update", fmt.Errorf("%w: no fields to update", apperr.ErrValidation))
	}
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&u.Position, validation.Min(0)),
	)
	if err != nil {
		return nil, s.done("update", fmt.Errorf("%w: %v", apperr.ErrValidation, err))
	}
	if u.ParentID.Set && u.ParentID.Value != nil && *u.ParentID.Value == "" {
		return nil, s.done("update", fmt.Errorf("%w: parent_id: cannot be blank", apperr.ErrValidation))
	}

	n, err := s.store.Update(ctx, id, u, s.now())
	if err != nil {
		return nil, s.done("update", err)
	}
	s.done("update", nil)

	ev := sse.EventNoteUpdated
	if u.ParentID.Set || u.Position != nil {
		ev = sse.EventNoteMoved
	}
	s.publish(ev, n)
	return n, nil
}

// Reorder moves a note in one atomic store operation.
func (s *Service) Reorder(ctx context.Context, id string, r models.NoteReorder) (*models.Note, error) {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Position, validation.Min(0)),
		validation.Field(&r.ParentID, validation.NilOrNotEmpty),
	)
	if err != nil {
		return nil, s.done("reorder", fmt.Errorf("%w: %v", apperr.ErrValidation, err))
	}

	n, err := s.store.Reorder(ctx, id, r, s.now())
	if err != nil {
		return nil, s.done("reorder", err)
	}
	s.done("reorder", nil)
	s.publish(sse.EventNoteMoved, n)
	return n, nil
}

// Delete removes a note and its descendants.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return s.done("delete", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.done("delete", err)
	}
	s.done("delete", nil)
	s.publish(sse.EventNoteDeleted, n)
	return nil
}

// Reset deletes every note.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return s.done("reset", err)
	}
	s.done("reset", nil)
	if s.pub != nil {
		s.pub.PublishNoteEvent(sse.NoteEvent{Type: sse.EventNotesReset})
	}
	return nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(event string, n *models.Note) {
	if s.pub == nil || n == nil {
		return
	}
	s.pub.PublishNoteEvent(sse.NoteEvent{Type: event, ID: n.ID, ParentID: n.ParentID})
}

// done records the outcome of op and passes err through.
func (s *Service) done(op string, err error) error {
	switch {
	case err == nil:
		s.metrics.NoteOp(op, metrics.ResultOK)
	case apperr.IsBadRequest(err), errors.Is(err, apperr.ErrNotFound):
		s.metrics.NoteOp(op, metrics.ResultRejected)
	default:
		s.metrics.NoteOp(op, metrics.ResultError)
	}
	return err
}
