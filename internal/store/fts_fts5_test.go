//go:build sqlite_fts5

package store

import (
	"context"
	"testing"

	"github.com/starford/folio/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_DeleteRemovesSubtree(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "a", nil)
	seed(t, db, "bb", ptr("a"))
	if _, err := db.Update(ctx, "bb", models.NoteUpdate{Content: models.Value("vanishing content")}, base); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := db.Search(ctx, "vanishing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("deleted descendant still indexed: %+v", results)
	}
}

func TestFTS5_UpdateReplacesContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "a", nil)
	_, _ = db.Update(ctx, "a", models.NoteUpdate{Content: models.Value("original text")}, base)
	_, _ = db.Update(ctx, "a", models.NoteUpdate{Content: models.Value("replacement text")}, base)

	results, _ := db.Search(ctx, "original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search(ctx, "replacement", 10)
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestQuoteQuery(t *testing.T) {
	if got := quoteQuery(`foo "bar`); got != `"foo" """bar"` {
		t.Errorf("quoteQuery = %s", got)
	}
}
