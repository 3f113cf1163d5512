//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id, title, content string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: clear fts row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO notes_fts (id, title, content) VALUES (?, ?, ?)`, id, title, content); err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, ids ...string) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete fts: %w", err)
		}
	}
	return nil
}

func ftsReset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM notes_fts`)
	return err
}

// Search performs an FTS5 full-text search and returns matching notes with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       title,
		       snippet(notes_fts, 2, '<b>', '</b>', '...', 32)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, quoteQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// quoteQuery turns free text into a sequence of quoted FTS5 terms so user
// punctuation is never parsed as query syntax.
func quoteQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
