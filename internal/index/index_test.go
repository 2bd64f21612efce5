package index

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/parser"
)

const activeBoard = `<!-- Config: Last Task ID: 3 -->

## 📝 To Do

### TASK-001 | Fix login bug

**Priority**: High | **Category**: Backend | **Assigned**: @alice, @bob
**Created**: 2025-01-20
**Tags**: #bug #auth

Session refresh fails after uniqueword expiry.

---

### TASK-002 | Write docs

**Priority**: Low | **Assigned**: @bob
**Created**: 2025-01-21

---

## 🚀 In Progress

### TASK-003 | Ship search

**Priority**: Medium | **Category**: Frontend
**Created**: 2025-01-19 | **Started**: 2025-01-20
**Tags**: #feature

---
`

const archiveBoard = `# Archive

## ✅ January 2025

### TASK-000 | Bootstrap

**Created**: 2025-01-01 | **Completed**: 2025-01-02

---
`

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "taskboard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	active, err := parser.Parse([]byte(activeBoard))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceDocument("kanban.md", "active", active.Doc, "a1", 0); err != nil {
		t.Fatalf("ReplaceDocument active: %v", err)
	}
	archive, err := parser.ParseArchive([]byte(archiveBoard))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceDocument("archive.md", "archive", archive.Doc, "b1", 0); err != nil {
		t.Fatalf("ReplaceDocument archive: %v", err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatalf("tasks table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&count); err != nil {
		t.Fatalf("files table missing: %v", err)
	}
}

func TestReplaceDocumentAndChecksum(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	cs, err := db.FileChecksum("kanban.md")
	if err != nil {
		t.Fatalf("FileChecksum: %v", err)
	}
	if cs != "a1" {
		t.Errorf("checksum = %q, want %q", cs, "a1")
	}

	_, total, err := db.ListTasks(Filter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
}

func TestReplaceDocumentDropsOldRows(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	res, _ := parser.Parse([]byte("<!-- Config: Last Task ID: 3 -->\n\n## To Do\n\n### TASK-002 | Write docs\n\n---\n"))
	if err := db.ReplaceDocument("kanban.md", "active", res.Doc, "a2", 0); err != nil {
		t.Fatalf("ReplaceDocument: %v", err)
	}
	if _, err := db.GetTask("TASK-001"); !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("TASK-001 should be gone, err = %v", err)
	}
	if _, err := db.GetTask("TASK-000"); err != nil {
		t.Errorf("archive rows must survive an active replace: %v", err)
	}
}

func TestGetTask(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	task, err := db.GetTask("task-001")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Section != "To Do" || task.Location != "active" || task.Position != 0 {
		t.Errorf("placement = %s/%s/%d", task.Location, task.Section, task.Position)
	}
	if task.Priority != "High" || task.Category != "Backend" {
		t.Errorf("priority/category = %q/%q", task.Priority, task.Category)
	}
	if len(task.Assignees) != 2 || task.Assignees[1] != "@bob" {
		t.Errorf("assignees = %v", task.Assignees)
	}
	if len(task.Tags) != 2 || task.Tags[0] != "#bug" {
		t.Errorf("tags = %v", task.Tags)
	}

	archived, err := db.GetTask("TASK-000")
	if err != nil {
		t.Fatalf("GetTask archived: %v", err)
	}
	if archived.Finished != "2025-01-02" || archived.Section != "January 2025" {
		t.Errorf("archived = %+v", archived)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetTask("TASK-404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListTasks_Filters(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"all", Filter{}, []string{"TASK-001", "TASK-002", "TASK-003", "TASK-000"}},
		{"active", Filter{Location: "active"}, []string{"TASK-001", "TASK-002", "TASK-003"}},
		{"section with emoji", Filter{Section: "🚀 In Progress"}, []string{"TASK-003"}},
		{"assignee", Filter{Assignee: "@bob"}, []string{"TASK-001", "TASK-002"}},
		{"tag", Filter{Tag: "#feature"}, []string{"TASK-003"}},
		{"priority", Filter{Priority: "high"}, []string{"TASK-001"}},
		{"category", Filter{Category: "frontend"}, []string{"TASK-003"}},
		{"paged", Filter{Limit: 1, Offset: 1}, []string{"TASK-002"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, _, err := db.ListTasks(tc.f)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "TASK-001" {
		t.Errorf("search results = %+v, want 1 hit for TASK-001", results)
	}
}

func TestFileChecksum_Unknown(t *testing.T) {
	db := testDB(t)
	cs, err := db.FileChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}
