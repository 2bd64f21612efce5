package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/storage"
	"github.com/starford/taskboard/internal/testutil"
)

const board = `<!-- Config: Last Task ID: 2 -->

# Kanban Board

## ⚙️ Configuration

**Columns**: 📝 To Do (todo) | 🚀 In Progress (in-progress) | ✅ Done (done)

---

## 📝 To Do

### TASK-001 | Fix login bug

**Priority**: High | **Assigned**: @alice
**Created**: 2025-01-20
**Tags**: #bug

Users cannot log in.

---

## 🚀 In Progress

### TASK-002 | Set up CI

**Created**: 2025-01-18 | **Started**: 2025-01-19

---

## ✅ Done
`

// testEnv sets up a temp board, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (storage.Provider, http.Handler) {
	t.Helper()
	_, store := testutil.TestBoard(t, board, "# Archive\n")
	return store, newRouter(t, store, authToken)
}

func newRouter(t *testing.T, store storage.Provider, authToken string) http.Handler {
	t.Helper()
	db := testutil.TestDB(t)
	svc := boardservice.New(store, db, testutil.Files,
		boardservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		boardservice.WithClock(func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) }),
	)
	if err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	return NewRouter(svc, authToken != "", authToken, nil)
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetBoard(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/board", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if etag := w.Header().Get("ETag"); etag == "" {
		t.Error("missing ETag")
	}
	var b boardservice.Board
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if len(b.Columns) != 3 || b.Columns[0].Tasks[0].ID != "TASK-001" {
		t.Errorf("board = %+v", b.Columns)
	}
	if len(b.Config.Columns) != 3 || b.Config.Columns[1].Slug != "in-progress" {
		t.Errorf("config = %+v", b.Config)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks", map[string]any{
		"section":    "todo",
		"title":      "Write docs",
		"attributes": []map[string]string{{"key": "Priority", "value": "Low"}},
		"subtasks":   []string{"outline"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var res boardservice.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.ID != "TASK-003" {
		t.Errorf("id = %q, want TASK-003", res.ID)
	}
	if got := w.Header().Get("ETag"); got != `"`+res.Checksum+`"` {
		t.Errorf("ETag = %q, want checksum %q", got, res.Checksum)
	}

	w = do(t, router, http.MethodGet, "/tasks/TASK-003", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var task boardservice.TaskDetail
	_ = json.Unmarshal(w.Body.Bytes(), &task)
	if task.Title != "Write docs" || task.Section != "To Do" {
		t.Errorf("task = %+v", task.Task)
	}
	if !strings.Contains(task.Markdown, "**Created**: 2025-03-10") {
		t.Errorf("markdown = %q", task.Markdown)
	}

	data, _ := store.Read(testutil.Files.Active)
	if !strings.Contains(string(data), "<!-- Config: Last Task ID: 3 -->") {
		t.Error("counter not written")
	}
}

func TestCreateTask_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing title", map[string]any{"section": "todo"}, http.StatusBadRequest},
		{"negative position", map[string]any{"title": "x", "position": -2}, http.StatusBadRequest},
		{"unknown field", map[string]any{"title": "x", "colour": "red"}, http.StatusBadRequest},
		{"structural body", map[string]any{"title": "x", "body": "## not allowed"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"title": "x", "attributes": []map[string]string{{"key": "Due", "value": "soon"}}}, http.StatusUnprocessableEntity},
		{"unknown section", map[string]any{"title": "x", "section": "nowhere"}, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/tasks", tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestGetTask_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tasks/TASK-404", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks/TASK-001/move", map[string]any{"section": "done"},
		"If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale If-Match status = %d, want 409", w.Code)
	}

	etag := do(t, router, http.MethodGet, "/board", nil).Header().Get("ETag")
	w = do(t, router, http.MethodPost, "/tasks/TASK-001/move", map[string]any{"section": "done"},
		"If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag should change after a write")
	}
}

func TestMoveTask(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks/TASK-002/move", map[string]any{"section": "todo", "position": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}
	var b boardservice.Board
	_ = json.Unmarshal(do(t, router, http.MethodGet, "/board", nil).Body.Bytes(), &b)
	todo := b.Columns[0].Tasks
	if len(todo) != 2 || todo[0].ID != "TASK-002" || todo[1].ID != "TASK-001" {
		t.Errorf("To Do = %+v", todo)
	}

	w = do(t, router, http.MethodPost, "/tasks/TASK-002/move", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing section status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/tasks/TASK-002/move", map[string]any{"section": "nowhere"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown section status = %d, want 404", w.Code)
	}
}

func TestFinishAndArchive(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/tasks/TASK-002/archive", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("archive unfinished status = %d, want 422", w.Code)
	}
	w = do(t, router, http.MethodPost, "/tasks/TASK-002/finish", map[string]any{"date": "someday"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/tasks/TASK-002/finish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("finish status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/tasks/TASK-002/finish", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second finish status = %d, want 422", w.Code)
	}
	w = do(t, router, http.MethodPost, "/tasks/TASK-002/archive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body = %s", w.Code, w.Body.String())
	}

	data, _ := store.Read(testutil.Files.Archive)
	if !strings.Contains(string(data), "## ✅ March 2025\n\n### TASK-002 | Set up CI") {
		t.Errorf("archive = %q", data)
	}

	var list TaskListResponse
	_ = json.Unmarshal(do(t, router, http.MethodGet, "/tasks?location=archive", nil).Body.Bytes(), &list)
	if list.Total != 1 || list.Tasks[0].ID != "TASK-002" {
		t.Errorf("archived list = %+v", list)
	}
}

func TestUpdateTask(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPatch, "/tasks/TASK-001", map[string]any{
		"title":        "Fix login and logout",
		"add_subtasks": []string{"reproduce"},
		"notes":        []map[string]string{{"label": "Plan", "text": "Refresh tokens"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var task boardservice.TaskDetail
	_ = json.Unmarshal(do(t, router, http.MethodGet, "/tasks/TASK-001", nil).Body.Bytes(), &task)
	if task.Title != "Fix login and logout" || len(task.Checklist) != 1 || len(task.Notes) != 1 {
		t.Errorf("task = %+v", task.Record)
	}

	w = do(t, router, http.MethodPatch, "/tasks/TASK-001", map[string]any{"toggle": []map[string]any{{"index": 9, "done": true}}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad toggle status = %d, want 422", w.Code)
	}
}

func TestTaskHTML(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tasks/TASK-001/html", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h3>TASK-001 | Fix login bug</h3>") {
		t.Errorf("html = %s", body)
	}
	if !strings.Contains(body, "<strong>Priority</strong>") {
		t.Errorf("metadata not rendered: %s", body)
	}
}

func TestListAndSearch(t *testing.T) {
	_, router := testEnv(t, "")

	var list TaskListResponse
	w := do(t, router, http.MethodGet, "/tasks?tag=%23bug", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Tasks[0].ID != "TASK-001" {
		t.Errorf("tag filter = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
	var sr SearchResponse
	w = do(t, router, http.MethodGet, "/search?q=login", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 1 || sr.Results[0].ID != "TASK-001" {
		t.Errorf("search = %+v", sr.Results)
	}
}

func TestValidate(t *testing.T) {
	store, router := testEnv(t, "")

	var report boardservice.Report
	_ = json.Unmarshal(do(t, router, http.MethodGet, "/validate", nil).Body.Bytes(), &report)
	if !report.Valid {
		t.Fatalf("expected valid board, got %+v", report.Problems)
	}

	broken := strings.Replace(board, "**Created**: 2025-01-20", "**Created**: 2025-13-40", 1)
	if err := store.Write(testutil.Files.Active, []byte(broken)); err != nil {
		t.Fatal(err)
	}
	_ = json.Unmarshal(do(t, router, http.MethodGet, "/validate", nil).Body.Bytes(), &report)
	if report.Valid || len(report.Problems) == 0 || report.Problems[0].RecordID != "TASK-001" {
		t.Errorf("report = %+v", report)
	}
}

func TestNotInitialized(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	svc := boardservice.New(store, db, testutil.Files)
	router := NewRouter(svc, false, "", nil)

	w := do(t, router, http.MethodGet, "/board", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/board", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/board", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/board", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}
