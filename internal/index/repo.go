package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

// TaskRow represents a row in the tasks table.
type TaskRow struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Section   string    `json:"section"`
	Position  int       `json:"position"`
	Title     string    `json:"title"`
	Priority  string    `json:"priority,omitempty"`
	Category  string    `json:"category,omitempty"`
	Assignees []string  `json:"assignees"`
	Tags      []string  `json:"tags"`
	Created   string    `json:"created,omitempty"`
	Started   string    `json:"started,omitempty"`
	Due       string    `json:"due,omitempty"`
	Finished  string    `json:"finished,omitempty"`
	Body      string    `json:"-"`
	Invalid   bool      `json:"invalid,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Section  string `json:"section"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Filter narrows ListTasks. Empty fields match everything.
type Filter struct {
	Location string
	Section  string
	Assignee string
	Tag      string
	Priority string
	Category string
	Limit    int
	Offset   int
}

// RowFromRecord flattens a record into the indexed columns.
func RowFromRecord(location, section string, position int, r *models.Record) TaskRow {
	attr := func(key string) string {
		v, _ := r.Attr(key)
		return strings.TrimSpace(v)
	}
	finished, _ := r.FinishedDate()
	return TaskRow{
		ID:        r.ID,
		Location:  location,
		Section:   section,
		Position:  position,
		Title:     r.Title,
		Priority:  attr(models.AttrPriority),
		Category:  attr(models.AttrCategory),
		Assignees: nonNil(r.ListAttr(models.AttrAssigned)),
		Tags:      nonNil(r.ListAttr(models.AttrTags)),
		Created:   attr(models.AttrCreated),
		Started:   attr(models.AttrStarted),
		Due:       attr(models.AttrDue),
		Finished:  strings.TrimSpace(finished),
		Body:      r.Body,
		Invalid:   r.Invalid,
	}
}

// ReplaceDocument swaps every row of one location for the records of doc and
// stores the checksum of the file it was parsed from, in one transaction.
func (db *DB) ReplaceDocument(name, location string, doc *models.Document, checksum string, problems int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM tasks WHERE location = ?`, location); err != nil {
		return fmt.Errorf("index: clear %s: %w", location, err)
	}

	now := time.Now().UTC()
	var rows []TaskRow
	if doc != nil {
		for _, sec := range doc.WorkflowSections() {
			for i, r := range sec.Records() {
				rows = append(rows, RowFromRecord(location, sec.Name, i, r))
			}
		}
	}

	if len(rows) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO tasks (id, location, section, position, title, priority, category,
			                   assignees, tags, created, started, due, finished, body, invalid, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			assignees, _ := json.Marshal(r.Assignees)
			tags, _ := json.Marshal(r.Tags)
			if _, err := stmt.Exec(r.ID, r.Location, r.Section, r.Position, r.Title, r.Priority, r.Category,
				string(assignees), string(tags), r.Created, r.Started, r.Due, r.Finished, r.Body, r.Invalid, now); err != nil {
				return fmt.Errorf("index: insert task %s: %w", r.ID, err)
			}
		}
	}

	// FTS replace (no-op when FTS5 tag is absent).
	if err := ftsReplace(tx, location, rows); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO files (name, checksum, problems, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			checksum   = excluded.checksum,
			problems   = excluded.problems,
			updated_at = excluded.updated_at
	`, name, checksum, problems, now)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	return tx.Commit()
}

// FileChecksum returns the checksum last indexed for a file, or empty string if unknown.
func (db *DB) FileChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE name = ?`, name).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: file checksum: %w", err)
	}
	return cs, nil
}

const taskColumns = `id, location, section, position, title, priority, category, assignees, tags,
	created, started, due, finished, body, invalid, updated_at`

// GetTask returns the indexed row of a task. Active rows win over archived
// ones when an id is duplicated.
func (db *DB) GetTask(id string) (*TaskRow, error) {
	row := db.conn.QueryRow(`SELECT `+taskColumns+` FROM tasks
		WHERE id = ? COLLATE NOCASE
		ORDER BY location = 'active' DESC
		LIMIT 1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", id, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get task: %w", err)
	}
	return t, nil
}

// ListTasks returns matching tasks in board order and the total before paging.
func (db *DB) ListTasks(f Filter) ([]TaskRow, int, error) {
	var where []string
	var args []any
	if f.Location != "" {
		where = append(where, "location = ?")
		args = append(args, f.Location)
	}
	if f.Section != "" {
		where = append(where, "section = ? COLLATE NOCASE")
		args = append(args, models.SectionName(f.Section))
	}
	if f.Priority != "" {
		where = append(where, "priority LIKE ?")
		args = append(args, "%"+f.Priority+"%")
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.Assignee != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(tasks.assignees) WHERE value = ? COLLATE NOCASE)")
		args = append(args, f.Assignee)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE value = ? COLLATE NOCASE)")
		args = append(args, f.Tag)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count tasks: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + taskColumns + ` FROM tasks` + cond +
		` ORDER BY location = 'archive', rowid LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*TaskRow, error) {
	var t TaskRow
	var assignees, tags string
	err := s.Scan(&t.ID, &t.Location, &t.Section, &t.Position, &t.Title, &t.Priority, &t.Category,
		&assignees, &tags, &t.Created, &t.Started, &t.Due, &t.Finished, &t.Body, &t.Invalid, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(assignees), &t.Assignees)
	_ = json.Unmarshal([]byte(tags), &t.Tags)
	t.Assignees = nonNil(t.Assignees)
	t.Tags = nonNil(t.Tags)
	return &t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
