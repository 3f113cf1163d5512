// Package testutil provides shared test helpers for note stores and file roots.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/store"
)

// TestDB creates a temporary SQLite note store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			os.Remove(dbFile.Name() + suffix)
		}
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary directory with a storage.FS over it, seeded with files (name -> content).
func TestRoot(t *testing.T, files map[string]string, exts ...string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := storage.NewFS(dir, exts...)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
