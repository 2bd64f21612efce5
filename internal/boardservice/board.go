package boardservice

import (
	"context"
	"strings"

	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/ledger"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/render"
)

// Board is the active document grouped by workflow section.
type Board struct {
	Checksum string              `json:"checksum"`
	LastID   int                 `json:"last_id"`
	Columns  []Column            `json:"columns"`
	Config   *models.BoardConfig `json:"config,omitempty"`
	Problems []Problem           `json:"problems,omitempty"`
}

// Column is one workflow section of the board.
type Column struct {
	Name    string `json:"name"`
	Heading string `json:"heading"`
	Tasks   []Task `json:"tasks"`
}

// Task is a record together with where it lives.
type Task struct {
	*models.Record
	Section  string `json:"section"`
	Location string `json:"location"`
}

// TaskDetail adds the Markdown rendering of the record and the board checksum.
type TaskDetail struct {
	Task
	Markdown string `json:"markdown"`
	Checksum string `json:"checksum"`
}

// Board reads the active document.
func (s *Service) Board(_ context.Context) (*Board, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	doc := snap.store.Active
	b := &Board{
		Checksum: snap.activeSum,
		LastID:   doc.LastID,
		Config:   doc.Config,
		Columns:  []Column{},
		Problems: problemsOf(s.files.Active, snap.activeRes.Problems),
	}
	for _, sec := range doc.WorkflowSections() {
		col := Column{Name: sec.Name, Heading: sec.Heading, Tasks: []Task{}}
		for _, r := range sec.Records() {
			col.Tasks = append(col.Tasks, Task{Record: r, Section: sec.Name, Location: string(ledger.LocationActive)})
		}
		b.Columns = append(b.Columns, col)
	}
	return b, nil
}

// Checksum returns the checksum of the active document.
func (s *Service) Checksum(_ context.Context) (string, error) {
	snap, err := s.read()
	if err != nil {
		return "", err
	}
	return snap.activeSum, nil
}

// GetTask reads a record from the files, looking in the active document
// first and then in the archive.
func (s *Service) GetTask(_ context.Context, id string) (*TaskDetail, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	hit, err := snap.store.Find(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	lines := hit.Record.Raw
	if lines == nil {
		lines = render.Record(hit.Record)
	}
	return &TaskDetail{
		Task:     Task{Record: hit.Record, Section: hit.Section, Location: string(hit.Location)},
		Markdown: strings.TrimRight(strings.Join(lines, "\n"), "\r\n") + "\n",
		Checksum: snap.activeSum,
	}, nil
}

// ListTasks queries the index.
func (s *Service) ListTasks(_ context.Context, f index.Filter) ([]index.TaskRow, int, error) {
	return s.db.ListTasks(f)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}
