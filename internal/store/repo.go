package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const noteColumns = `id, title, content, sidenote, parent_id, position, created_at, updated_at`

// maxDepth bounds recursive walks so that corrupted parent pointers cannot loop forever.
const maxDepth = 100

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*models.Note, error) {
	var (
		n                         models.Note
		content, sidenote, parent sql.NullString
	)
	if err := s.Scan(&n.ID, &n.Title, &content, &sidenote, &parent, &n.Position, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Content = stringPtr(content)
	n.Sidenote = stringPtr(sidenote)
	n.ParentID = stringPtr(parent)
	return &n, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func queryNotes(ctx context.Context, q querier, query string, args ...any) ([]models.Note, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func getNote(ctx context.Context, q querier, id string) (*models.Note, error) {
	n, err := scanNote(q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// List returns every note, roots first, then grouped by parent and ordered by position.
func (db *DB) List(ctx context.Context) ([]models.Note, error) {
	notes, err := queryNotes(ctx, db.conn, `SELECT `+noteColumns+` FROM notes ORDER BY parent_id, position, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	return notes, nil
}

// Get returns a single note or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id string) (*models.Note, error) {
	return getNote(ctx, db.conn, id)
}

// Children returns the direct children of parentID (nil = root notes) in sibling order.
func (db *DB) Children(ctx context.Context, parentID *string) ([]models.Note, error) {
	notes, err := queryNotes(ctx, db.conn,
		`SELECT `+noteColumns+` FROM notes WHERE parent_id IS ? ORDER BY position, created_at`, nullString(parentID))
	if err != nil {
		return nil, fmt.Errorf("store: children: %w", err)
	}
	return notes, nil
}

// Create inserts n at the end of its parent's children. n.Position is ignored.
func (db *DB) Create(ctx context.Context, n models.Note) (*models.Note, error) {
	var out *models.Note
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := validateParent(ctx, tx, n.ID, n.ParentID); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM notes WHERE parent_id IS ?`, nullString(n.ParentID)).Scan(&count); err != nil {
			return fmt.Errorf("store: count siblings: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, title, content, sidenote, parent_id, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.Title, nullString(n.Content), nullString(n.Sidenote), nullString(n.ParentID), count, n.CreatedAt, n.UpdatedAt)
		if err != nil {
			return fmt.Errorf("store: insert note: %w", err)
		}
		if err := normalizePositions(ctx, tx, n.ParentID); err != nil {
			return err
		}
		if err := ftsUpsert(ctx, tx, n.ID, n.Title, deref(n.Content)); err != nil {
			return err
		}
		out, err = getNote(ctx, tx, n.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the set fields of u. A parent change renormalises both the old and the new sibling lists.
func (db *DB) Update(ctx context.Context, id string, u models.NoteUpdate, now time.Time) (*models.Note, error) {
	var out *models.Note
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		note, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if u.ParentID.Set {
			if err := validateParent(ctx, tx, id, u.ParentID.Value); err != nil {
				return err
			}
		}

		var (
			sets []string
			args []any
		)
		if u.Title != nil {
			sets = append(sets, "title = ?")
			args = append(args, *u.Title)
		}
		if u.Content.Set {
			sets = append(sets, "content = ?")
			args = append(args, nullString(u.Content.Value))
		}
		if u.Sidenote.Set {
			sets = append(sets, "sidenote = ?")
			args = append(args, nullString(u.Sidenote.Value))
		}
		if u.ParentID.Set {
			sets = append(sets, "parent_id = ?")
			args = append(args, nullString(u.ParentID.Value))
		}
		if u.Position != nil {
			sets = append(sets, "position = ?")
			args = append(args, *u.Position)
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id)

		if _, err := tx.ExecContext(ctx, `UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("store: update note: %w", err)
		}

		if u.ParentID.Set && !sameParent(note.ParentID, u.ParentID.Value) {
			if err := normalizePositions(ctx, tx, note.ParentID); err != nil {
				return err
			}
			if err := normalizePositions(ctx, tx, u.ParentID.Value); err != nil {
				return err
			}
		}

		out, err = getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		return ftsUpsert(ctx, tx, out.ID, out.Title, deref(out.Content))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a note and, through the foreign key cascade, all of its descendants.
func (db *DB) Delete(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		note, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		ids, err := subtreeIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete note: %w", err)
		}
		if err := normalizePositions(ctx, tx, note.ParentID); err != nil {
			return err
		}
		return ftsDelete(ctx, tx, ids...)
	})
}

// DeleteAll clears every note.
func (db *DB) DeleteAll(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
			return fmt.Errorf("store: delete all: %w", err)
		}
		return ftsReset(ctx, tx)
	})
}

// normalizePositions rewrites the positions of parentID's children to 0..n-1, keeping their order.
func normalizePositions(ctx context.Context, tx *sql.Tx, parentID *string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, position FROM notes WHERE parent_id IS ? ORDER BY position, created_at, id`, nullString(parentID))
	if err != nil {
		return fmt.Errorf("store: normalize query: %w", err)
	}
	type entry struct {
		id       string
		position int
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.position); err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i, e := range entries {
		if e.position == i {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE notes SET position = ? WHERE id = ?`, i, e.id); err != nil {
			return fmt.Errorf("store: normalize update: %w", err)
		}
	}
	return nil
}

// validateParent rejects parent assignments that would dangle or create a cycle.
func validateParent(ctx context.Context, q querier, id string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return apperr.ErrSelfParent
	}
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, *parentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrParentNotFound
	}
	if err != nil {
		return fmt.Errorf("store: parent lookup: %w", err)
	}
	desc, err := isDescendant(ctx, q, *parentID, id)
	if err != nil {
		return err
	}
	if desc {
		return apperr.ErrDescendantParent
	}
	return nil
}

// isDescendant reports whether candidate lies somewhere below ancestor.
func isDescendant(ctx context.Context, q querier, candidate, ancestor string) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx, `
		WITH RECURSIVE descendants(id, depth) AS (
			SELECT id, 1 FROM notes WHERE parent_id = ?
			UNION ALL
			SELECT n.id, d.depth + 1 FROM notes n
			JOIN descendants d ON n.parent_id = d.id
			WHERE d.depth < ?
		)
		SELECT 1 FROM descendants WHERE id = ? LIMIT 1
	`, ancestor, maxDepth, candidate).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: descendant check: %w", err)
	}
	return true, nil
}

// subtreeIDs returns id and every id below it.
func subtreeIDs(ctx context.Context, q querier, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE subtree(id, depth) AS (
			SELECT id, 0 FROM notes WHERE id = ?
			UNION ALL
			SELECT n.id, s.depth + 1 FROM notes n
			JOIN subtree s ON n.parent_id = s.id
			WHERE s.depth < ?
		)
		SELECT id FROM subtree
	`, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("store: subtree: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
