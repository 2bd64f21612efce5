package ledger

import (
	"fmt"
	"strings"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

// Location tells which document of the store holds a record.
type Location string

const (
	LocationActive  Location = "active"
	LocationArchive Location = "archive"
)

// Store owns the active and archive documents. Every mutating method works
// on copies and only replaces Active/Archive when it succeeds.
type Store struct {
	Active  *models.Document
	Archive *models.Document

	prefix string
	width  int
}

// Option configures a Store.
type Option func(*Store)

// WithIDFormat sets the id prefix and minimum digit width.
func WithIDFormat(prefix string, width int) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
		if width > 0 {
			s.width = width
		}
	}
}

// NewStore wraps the two documents. Nil documents start empty.
func NewStore(active, archive *models.Document, opts ...Option) *Store {
	if active == nil {
		active = models.NewDocument()
	}
	if archive == nil {
		archive = models.NewDocument()
	}
	s := &Store{Active: active, Archive: archive, prefix: DefaultPrefix, width: DefaultWidth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit is the result of a lookup.
type Hit struct {
	Record   *models.Record
	Section  string
	Location Location
}

// Find locates a record by id in the active document, then the archive.
func (s *Store) Find(id string) (Hit, error) {
	if sec, i := s.Active.Find(id); sec != nil {
		return Hit{Record: sec.Blocks[i].Record, Section: sec.Name, Location: LocationActive}, nil
	}
	if sec, i := s.Archive.Find(id); sec != nil {
		return Hit{Record: sec.Blocks[i].Record, Section: sec.Name, Location: LocationArchive}, nil
	}
	return Hit{}, fmt.Errorf("ledger: %s: %w", id, apperr.ErrRecordNotFound)
}

// occurrences counts records with the given id across both documents.
func (s *Store) occurrences(id string) int {
	n := 0
	for _, doc := range []*models.Document{s.Active, s.Archive} {
		for _, r := range doc.Records() {
			if strings.EqualFold(r.ID, id) {
				n++
			}
		}
	}
	return n
}

func (s *Store) unique(id string) error {
	if s.occurrences(id) > 1 {
		return fmt.Errorf("ledger: %s appears more than once: %w", id, apperr.ErrDuplicateID)
	}
	return nil
}

// section resolves a section of doc by name or column slug. An empty name
// means the first workflow section. When create is set, a configured column
// without a section gets one appended.
func section(doc *models.Document, name string, create bool) (*models.Section, error) {
	if strings.TrimSpace(name) == "" {
		if ws := doc.WorkflowSections(); len(ws) > 0 {
			return ws[0], nil
		}
		return nil, fmt.Errorf("ledger: document has no sections: %w", apperr.ErrSectionNotFound)
	}
	if sec := doc.Section(name); sec != nil && !sec.IsConfiguration() {
		return sec, nil
	}
	if col, ok := doc.Config.Column(name); ok {
		if sec := doc.Section(col.Name); sec != nil {
			return sec, nil
		}
		if create {
			sec := models.NewSection(col.Name)
			doc.InsertSection(-1, sec)
			return sec, nil
		}
	}
	return nil, fmt.Errorf("ledger: %q: %w", name, apperr.ErrSectionNotFound)
}
