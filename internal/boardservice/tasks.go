package boardservice

import (
	"context"
	"strings"
	"time"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/ledger"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/sse"
)

// CreateInput describes a task to create.
type CreateInput struct {
	Section    string
	Position   int
	Title      string
	Attributes []models.Attribute
	Body       string
	Subtasks   []string
	Notes      []models.Note
}

// Result is returned by every mutation.
type Result struct {
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
}

// CreateTask allocates the next id and inserts the task. A negative position
// appends to the section.
func (s *Service) CreateTask(ctx context.Context, in CreateInput, ifMatch string) (*Result, error) {
	rec := ledger.NewRecord{
		Title:      in.Title,
		Attributes: in.Attributes,
		Body:       in.Body,
		Notes:      in.Notes,
	}
	for _, text := range in.Subtasks {
		rec.Checklist = append(rec.Checklist, models.ChecklistItem{Text: text})
	}
	now := s.now()

	var id string
	sum, err := s.mutate(ctx, ifMatch, func(st *ledger.Store) error {
		r, err := st.Create(in.Section, in.Position, rec, now)
		if err != nil {
			return err
		}
		id = r.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created", "id", id, "section", in.Section)
	s.publish(sse.KindCreated, id)
	return &Result{ID: id, Checksum: sum}, nil
}

// MoveTask moves an active task to another section. The source section is
// resolved from the current location of the task.
func (s *Service) MoveTask(ctx context.Context, id, to string, pos int, ifMatch string) (*Result, error) {
	sum, err := s.mutate(ctx, ifMatch, func(st *ledger.Store) error {
		hit, err := st.Find(id)
		if err != nil {
			return err
		}
		if hit.Location == ledger.LocationArchive {
			return &apperr.ValidationError{RecordID: id, Msg: "archived records are read-only"}
		}
		return st.Move(id, hit.Section, to, pos)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("task moved", "id", id, "to", to)
	s.publish(sse.KindMoved, id)
	return &Result{ID: id, Checksum: sum}, nil
}

// StartTask sets the Started date. An empty date means today.
func (s *Service) StartTask(ctx context.Context, id, date, ifMatch string) (*Result, error) {
	at, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, ifMatch, func(st *ledger.Store) error { return st.Start(id, at) })
}

// FinishTask sets the Finished date. An empty date means today.
func (s *Service) FinishTask(ctx context.Context, id, date, ifMatch string) (*Result, error) {
	at, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, ifMatch, func(st *ledger.Store) error { return st.Finish(id, at) })
}

// Toggle sets the done state of one subtask.
type Toggle struct {
	Index int  `json:"index"`
	Done  bool `json:"done"`
}

// Patch lists the edits of UpdateTask. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Body        *string
	Attributes  []models.Attribute
	AddSubtasks []string
	Toggle      []Toggle
	Notes       []models.Note
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Body == nil && len(p.Attributes) == 0 &&
		len(p.AddSubtasks) == 0 && len(p.Toggle) == 0 && len(p.Notes) == 0
}

// UpdateTask applies every edit of the patch or none of them.
func (s *Service) UpdateTask(ctx context.Context, id string, p Patch, ifMatch string) (*Result, error) {
	if p.Empty() {
		return nil, &apperr.ValidationError{RecordID: id, Msg: "nothing to update"}
	}
	return s.update(ctx, id, ifMatch, func(st *ledger.Store) error {
		if p.Title != nil {
			if err := st.SetTitle(id, *p.Title); err != nil {
				return err
			}
		}
		if p.Body != nil {
			if err := st.SetBody(id, *p.Body); err != nil {
				return err
			}
		}
		for _, a := range p.Attributes {
			if err := st.SetAttribute(id, a.Key, a.Value); err != nil {
				return err
			}
		}
		for _, text := range p.AddSubtasks {
			if err := st.AddSubtask(id, text); err != nil {
				return err
			}
		}
		for _, t := range p.Toggle {
			if err := st.ToggleSubtask(id, t.Index, t.Done); err != nil {
				return err
			}
		}
		for _, n := range p.Notes {
			if err := st.SetNote(id, n.Label, n.Text); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) update(ctx context.Context, id, ifMatch string, fn func(st *ledger.Store) error) (*Result, error) {
	sum, err := s.mutate(ctx, ifMatch, fn)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task updated", "id", id)
	s.publish(sse.KindUpdated, id)
	return &Result{ID: id, Checksum: sum}, nil
}

// ArchiveTask moves a finished task into the archive.
func (s *Service) ArchiveTask(ctx context.Context, id, ifMatch string) (*Result, error) {
	sum, err := s.mutate(ctx, ifMatch, func(st *ledger.Store) error { return st.ArchiveRecord(id) })
	if err != nil {
		return nil, err
	}
	s.logger.Info("task archived", "id", id)
	s.publish(sse.KindArchived, id)
	return &Result{ID: id, Checksum: sum}, nil
}

func (s *Service) date(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.now(), nil
	}
	t, err := models.ParseDate(v)
	if err != nil {
		return time.Time{}, &apperr.ValidationError{Field: "date", Msg: err.Error()}
	}
	return t, nil
}
