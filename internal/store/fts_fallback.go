//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// No FTS5: search falls back to LIKE over the notes table.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ context.Context, _ *sql.Tx, _ ...string) error { return nil }

func ftsReset(_ context.Context, _ *sql.Tx) error { return nil }

// Search performs a LIKE-based search over titles and content.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, substr(coalesce(content, ''), 1, 200)
		FROM notes
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, limit)
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
