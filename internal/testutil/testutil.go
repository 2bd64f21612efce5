// Package testutil provides shared test helpers for setting up boards and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/storage"
)

// Files are the ledger file names used by tests.
var Files = index.Files{Active: "kanban.md", Archive: "archive.md"}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "taskboard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBoard creates a temporary board directory holding the given active and
// archive contents. An empty archive string leaves the archive missing.
func TestBoard(t *testing.T, active, archive string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(Files.Active, []byte(active)); err != nil {
		t.Fatal(err)
	}
	if archive != "" {
		if err := store.Write(Files.Archive, []byte(archive)); err != nil {
			t.Fatal(err)
		}
	}
	return dir, store
}
