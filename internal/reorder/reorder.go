// Package reorder turns a drop target into the single atomic move request sent to the note store.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/gesture"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/tree"
)

// ErrInvalidTarget is returned when the target is the dragged node, one of its descendants, or unknown.
var ErrInvalidTarget = errors.New("reorder: invalid drop target")

// Move is the new placement of a note.
type Move struct {
	NoteID   string
	ParentID *string
	Position int
}

// Request converts m into the reorder payload.
func (m Move) Request() models.NoteReorder {
	return models.NoteReorder{ParentID: m.ParentID, Position: m.Position}
}

// Resolve translates target into a parent and position using the tree snapshot ix.
func Resolve(nodeID string, target gesture.DropTarget, ix *tree.Index) (Move, error) {
	if target.IsRoot() {
		return Move{NoteID: nodeID, Position: len(ix.Roots())}, nil
	}

	over, ok := ix.Node(target.TargetID)
	if !ok || target.TargetID == nodeID || ix.IsDescendant(target.TargetID, nodeID) {
		return Move{}, ErrInvalidTarget
	}

	if target.Position == gesture.On {
		parent := over.ID
		return Move{NoteID: nodeID, ParentID: &parent, Position: len(over.Children)}, nil
	}

	m := Move{NoteID: nodeID}
	if p, ok := ix.ParentID(over.ID); ok {
		m.ParentID = &p
	}
	idx := 0
	for _, s := range ix.Siblings(over.ID) {
		if s.ID == nodeID {
			continue
		}
		if s.ID == over.ID {
			break
		}
		idx++
	}
	if target.Position == gesture.After {
		idx++
	}
	m.Position = max(0, idx)
	return m, nil
}

// MoveAPI is the single endpoint the committer is allowed to use.
type MoveAPI interface {
	ReorderNote(ctx context.Context, id string, r models.NoteReorder) (*models.Note, error)
}

// Committer persists drop targets. It keeps no cache; callers refresh their snapshot afterwards.
type Committer struct {
	api    MoveAPI
	logger *slog.Logger
}

// NewCommitter returns a Committer. A nil logger uses slog.Default.
func NewCommitter(api MoveAPI, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{api: api, logger: logger}
}

// Commit resolves target and issues exactly one reorder call.
func (c *Committer) Commit(ctx context.Context, nodeID string, target gesture.DropTarget, ix *tree.Index) (Move, error) {
	m, err := Resolve(nodeID, target, ix)
	if err != nil {
		return Move{}, err
	}
	if _, err := c.api.ReorderNote(ctx, nodeID, m.Request()); err != nil {
		c.logger.Error("reorder failed",
			slog.String("note", nodeID),
			slog.String("target", target.String()),
			slog.String("error", err.Error()),
		)
		return m, fmt.Errorf("reorder: commit %s: %w", nodeID, err)
	}
	return m, nil
}
