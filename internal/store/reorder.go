package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/folio/internal/models"
)

type sibling struct {
	id       string
	position int
}

// Reorder moves a note under r.ParentID (nil = root) at index r.Position among its new
// siblings. The whole move runs in one transaction: siblings at or after the target index
// shift down by one, then both the old and the new parent are renormalised to 0..n-1.
// A position past the end appends. Moving a note to the index it already holds is a no-op.
func (db *DB) Reorder(ctx context.Context, id string, r models.NoteReorder, now time.Time) (*models.Note, error) {
	if r.Position < 0 {
		r.Position = 0
	}
	var out *models.Note
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		note, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := validateParent(ctx, tx, id, r.ParentID); err != nil {
			return err
		}

		siblings, err := siblingsExcept(ctx, tx, r.ParentID, id)
		if err != nil {
			return err
		}

		same := sameParent(note.ParentID, r.ParentID)
		if same && currentIndex(siblings, note.Position) == r.Position {
			out = note
			return nil
		}

		for i, s := range siblings {
			pos := i
			if i >= r.Position {
				pos = i + 1
			}
			if pos == s.position {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE notes SET position = ? WHERE id = ?`, pos, s.id); err != nil {
				return fmt.Errorf("store: shift sibling: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE notes SET parent_id = ?, position = ?, updated_at = ? WHERE id = ?`,
			nullString(r.ParentID), r.Position, now, id); err != nil {
			return fmt.Errorf("store: move note: %w", err)
		}

		if err := normalizePositions(ctx, tx, r.ParentID); err != nil {
			return err
		}
		if !same {
			if err := normalizePositions(ctx, tx, note.ParentID); err != nil {
				return err
			}
		}

		out, err = getNote(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// siblingsExcept lists the children of parentID other than id, in sibling order.
func siblingsExcept(ctx context.Context, tx *sql.Tx, parentID *string, id string) ([]sibling, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, position FROM notes WHERE parent_id IS ? AND id != ? ORDER BY position, created_at, id`,
		nullString(parentID), id)
	if err != nil {
		return nil, fmt.Errorf("store: siblings: %w", err)
	}
	defer rows.Close()

	var out []sibling
	for rows.Next() {
		var s sibling
		if err := rows.Scan(&s.id, &s.position); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// currentIndex is the index the note would hold among siblings given its stored position.
func currentIndex(siblings []sibling, position int) int {
	for i, s := range siblings {
		if s.position > position {
			return i
		}
	}
	return len(siblings)
}
