package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

// NewRecord carries the caller-supplied fields of a record to create.
type NewRecord struct {
	Title      string
	Attributes []models.Attribute
	Body       string
	Checklist  []models.ChecklistItem
	Notes      []models.Note
}

// Create allocates an id and inserts a new record at record position pos of
// the named section (append when pos is negative or past the end). An empty
// section name selects the first workflow section. Created defaults to now.
func (s *Store) Create(sectionName string, pos int, in NewRecord, now time.Time) (*models.Record, error) {
	r := &models.Record{Title: strings.TrimSpace(in.Title), Terminated: true}
	if r.Title == "" {
		return nil, &apperr.ValidationError{Field: "Title", Msg: "title is required"}
	}
	for _, a := range in.Attributes {
		if err := checkAttr(a.Key, a.Value); err != nil {
			return nil, err
		}
		r.SetAttr(strings.TrimSpace(a.Key), strings.TrimSpace(a.Value))
	}
	if v, ok := r.Attr(models.AttrCreated); !ok || strings.TrimSpace(v) == "" {
		r.SetAttr(models.AttrCreated, now.Format(models.DateLayout))
	}
	if err := checkText("Body", in.Body, len(r.Attributes) == 0); err != nil {
		return nil, err
	}
	r.Body = strings.TrimSpace(in.Body)
	for _, item := range in.Checklist {
		if err := checkLine("Subtasks", item.Text); err != nil {
			return nil, err
		}
		r.Checklist = append(r.Checklist, models.ChecklistItem{Done: item.Done, Text: strings.TrimSpace(item.Text)})
	}
	for _, n := range in.Notes {
		if err := checkNote(n.Label, n.Text); err != nil {
			return nil, err
		}
		r.Notes = append(r.Notes, models.Note{Label: strings.TrimSpace(n.Label), Text: strings.TrimSpace(n.Text)})
	}

	if err := s.checkArchiveCounter(); err != nil {
		return nil, err
	}
	id, doc, err := Allocate(s.Active, s.prefix, s.width)
	if err != nil {
		return nil, err
	}
	r.ID = id
	if errs := r.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}

	sec, err := section(doc, sectionName, true)
	if err != nil {
		return nil, err
	}
	sec.Insert(pos, r)
	s.Active = doc
	return r, nil
}

// checkArchiveCounter makes sure the next id cannot collide with an id that
// was already archived.
func (s *Store) checkArchiveCounter() error {
	if maxID := s.Archive.MaxID(); s.Active.LastID < maxID {
		return fmt.Errorf("ledger: Last Task ID %d is below highest archived id %d: %w",
			s.Active.LastID, maxID, apperr.ErrCounterInconsistency)
	}
	return nil
}

// Move removes the record from one active section and inserts it into
// another at record position pos. It never sets workflow dates.
func (s *Store) Move(id, from, to string, pos int) error {
	doc := s.Active.Clone()
	src, err := section(doc, from, false)
	if err != nil {
		return err
	}
	i := src.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("ledger: %s not in %q: %w", id, src.Name, apperr.ErrRecordNotFound)
	}
	if err := s.unique(id); err != nil {
		return err
	}
	dst, err := section(doc, to, true)
	if err != nil {
		return err
	}

	r := src.Blocks[i].Record
	if !r.Terminated {
		r = r.Clone()
		r.Touch()
	}
	src.Blocks = slices.Delete(src.Blocks, i, i+1)
	dst.Insert(pos, r)
	s.Active = doc
	return nil
}

// ArchiveRecord moves a finished record from the active document to the archive
// under its month group, creating the group when needed. It must only be
// called on an explicit request.
func (s *Store) ArchiveRecord(id string) error {
	active := s.Active.Clone()
	src, i := active.Find(id)
	if src == nil {
		if sec, _ := s.Archive.Find(id); sec != nil {
			return &apperr.ValidationError{RecordID: id, Msg: "record is already archived"}
		}
		return fmt.Errorf("ledger: %s: %w", id, apperr.ErrRecordNotFound)
	}
	if err := s.unique(id); err != nil {
		return err
	}
	r := src.Blocks[i].Record
	finished, ok := r.FinishedDate()
	if !ok {
		return fmt.Errorf("ledger: %s: %w", r.ID, apperr.ErrNotFinished)
	}
	at, err := models.ParseDate(finished)
	if err != nil {
		return &apperr.ValidationError{RecordID: r.ID, Field: models.AttrFinished, Line: r.Line, Msg: err.Error()}
	}
	if errs := r.Validate(); len(errs) > 0 {
		return errs[0]
	}

	archive := s.Archive.Clone()
	if !r.Terminated {
		r = r.Clone()
		r.Touch()
	}
	src.Blocks = slices.Delete(src.Blocks, i, i+1)
	periodSection(archive, at).Insert(-1, r)

	s.Active = active
	s.Archive = archive
	return nil
}

const periodLayout = "January 2006"

// PeriodName returns the archive group name for a finish date.
func PeriodName(t time.Time) string { return t.Format(periodLayout) }

// periodSection returns the month group of t, inserting a new one so that
// groups stay newest first.
func periodSection(doc *models.Document, t time.Time) *models.Section {
	name := PeriodName(t)
	if sec := doc.Section(name); sec != nil {
		return sec
	}
	month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	sec := models.NewSection("✅ " + name)
	at := len(doc.Sections)
	for i, existing := range doc.Sections {
		if pt, err := time.Parse(periodLayout, existing.Name); err == nil && pt.Before(month) {
			at = i
			break
		}
	}
	doc.InsertSection(at, sec)
	return sec
}

// Start sets the Started date. It can only be set once.
func (s *Store) Start(id string, at time.Time) error {
	return s.update(id, func(r *models.Record) error {
		if v, ok := r.Attr(models.AttrStarted); ok && strings.TrimSpace(v) != "" {
			return &apperr.ValidationError{RecordID: r.ID, Field: models.AttrStarted, Msg: "already set to " + v}
		}
		r.SetAttr(models.AttrStarted, at.Format(models.DateLayout))
		return nil
	})
}

// Finish sets the Finished date. It can only be set once.
func (s *Store) Finish(id string, at time.Time) error {
	return s.update(id, func(r *models.Record) error {
		if v, ok := r.FinishedDate(); ok {
			return &apperr.ValidationError{RecordID: r.ID, Field: models.AttrFinished, Msg: "already set to " + v}
		}
		r.SetAttr(models.AttrFinished, at.Format(models.DateLayout))
		return nil
	})
}

// SetAttribute sets an arbitrary attribute. Created is immutable once set and
// Started/Finished go through Start and Finish.
func (s *Store) SetAttribute(id, key, value string) error {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if err := checkAttr(key, value); err != nil {
		return err
	}
	return s.update(id, func(r *models.Record) error {
		switch strings.ToLower(key) {
		case "created":
			if v, ok := r.Attr(models.AttrCreated); ok && v != "" {
				return &apperr.ValidationError{RecordID: r.ID, Field: models.AttrCreated, Msg: "created date is immutable"}
			}
		case "started":
			if v, ok := r.Attr(key); ok && v != "" {
				return &apperr.ValidationError{RecordID: r.ID, Field: key, Msg: "already set to " + v}
			}
		case "finished", "completed":
			if v, ok := r.FinishedDate(); ok {
				return &apperr.ValidationError{RecordID: r.ID, Field: key, Msg: "finish date already set to " + v}
			}
		}
		r.SetAttr(key, value)
		return nil
	})
}

// SetTitle replaces the record title.
func (s *Store) SetTitle(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &apperr.ValidationError{RecordID: id, Field: "Title", Msg: "title is required"}
	}
	return s.update(id, func(r *models.Record) error {
		r.Title = title
		return nil
	})
}

// SetBody replaces the free-text body.
func (s *Store) SetBody(id, body string) error {
	return s.update(id, func(r *models.Record) error {
		if err := checkText("Body", body, len(r.Attributes) == 0); err != nil {
			return err
		}
		r.Body = strings.TrimSpace(body)
		return nil
	})
}

// AddSubtask appends an unchecked checklist item.
func (s *Store) AddSubtask(id, text string) error {
	if err := checkLine("Subtasks", text); err != nil {
		return err
	}
	return s.update(id, func(r *models.Record) error {
		r.Checklist = append(r.Checklist, models.ChecklistItem{Text: strings.TrimSpace(text)})
		return nil
	})
}

// ToggleSubtask sets the done state of the checklist item at index.
func (s *Store) ToggleSubtask(id string, index int, done bool) error {
	return s.update(id, func(r *models.Record) error {
		if index < 0 || index >= len(r.Checklist) {
			return &apperr.ValidationError{RecordID: r.ID, Field: "Subtasks", Msg: fmt.Sprintf("no subtask at index %d", index)}
		}
		r.Checklist[index].Done = done
		return nil
	})
}

// SetNote replaces the note with the given label or appends a new one.
func (s *Store) SetNote(id, label, text string) error {
	label = strings.TrimSpace(label)
	if err := checkNote(label, text); err != nil {
		return err
	}
	return s.update(id, func(r *models.Record) error {
		for i, n := range r.Notes {
			if strings.EqualFold(n.Label, label) {
				r.Notes[i].Text = strings.TrimSpace(text)
				return nil
			}
		}
		r.Notes = append(r.Notes, models.Note{Label: label, Text: strings.TrimSpace(text)})
		return nil
	})
}

// update applies fn to a copy of an active record and commits it when the
// result validates.
func (s *Store) update(id string, fn func(r *models.Record) error) error {
	doc := s.Active.Clone()
	sec, i := doc.Find(id)
	if sec == nil {
		if arch, _ := s.Archive.Find(id); arch != nil {
			return &apperr.ValidationError{RecordID: id, Msg: "archived records are read-only"}
		}
		return fmt.Errorf("ledger: %s: %w", id, apperr.ErrRecordNotFound)
	}
	if err := s.unique(id); err != nil {
		return err
	}
	r := sec.Blocks[i].Record.Clone()
	if err := fn(r); err != nil {
		return err
	}
	if errs := r.Validate(); len(errs) > 0 {
		return errs[0]
	}
	r.Invalid = false
	r.Touch()
	sec.Blocks[i] = models.Block{Record: r}
	s.Active = doc
	return nil
}
