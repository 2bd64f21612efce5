//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/taskboard/internal/parser"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks_fts`).Scan(&count); err != nil {
		t.Fatalf("tasks_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	results, err := db.Search("refresh", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "TASK-001" {
		t.Errorf("id = %q", results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_ReplaceKeepsOtherLocation(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	res, _ := parser.Parse([]byte("<!-- Config: Last Task ID: 3 -->\n\n## To Do\n"))
	if err := db.ReplaceDocument("kanban.md", "active", res.Doc, "a2", 0); err != nil {
		t.Fatalf("ReplaceDocument: %v", err)
	}

	results, _ := db.Search("refresh", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("bootstrap", 10)
	if len(results) != 1 || results[0].Location != "archive" {
		t.Errorf("archive rows missing from FTS: %+v", results)
	}
}
