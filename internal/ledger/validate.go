package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

var (
	keyRe       = regexp.MustCompile(`^[^*:|\r\n]+$`)
	boldLabelRe = regexp.MustCompile(`^\*\*[^*]+?\*\*:`)
)

// Validate checks the invariants spanning both documents: counter
// consistency, unique ids, date order, and finish dates on archived records.
func (s *Store) Validate() error {
	var merr *multierror.Error

	if s.Active.HasCounter() {
		maxID := s.Active.MaxID()
		if archived := s.Archive.MaxID(); archived > maxID {
			maxID = archived
		}
		if s.Active.LastID < maxID {
			merr = multierror.Append(merr, fmt.Errorf("Last Task ID %d is below highest id %d: %w",
				s.Active.LastID, maxID, apperr.ErrCounterInconsistency))
		}
	}

	seen := make(map[string]Location)
	check := func(doc *models.Document, loc Location) {
		for _, r := range doc.Records() {
			key := strings.ToUpper(r.ID)
			if first, dup := seen[key]; dup {
				merr = multierror.Append(merr, &apperr.ValidationError{
					RecordID: r.ID,
					Line:     r.Line,
					Msg:      fmt.Sprintf("%s id also used in %s document", loc, first),
					Err:      apperr.ErrDuplicateID,
				})
			} else {
				seen[key] = loc
			}
			for _, verr := range r.Validate() {
				merr = multierror.Append(merr, verr)
			}
			if loc == LocationArchive {
				if _, ok := r.FinishedDate(); !ok {
					merr = multierror.Append(merr, &apperr.ValidationError{
						RecordID: r.ID,
						Field:    models.AttrFinished,
						Line:     r.Line,
						Msg:      "archived record has no finished date",
						Err:      apperr.ErrNotFinished,
					})
				}
			}
		}
	}
	check(s.Active, LocationActive)
	check(s.Archive, LocationArchive)

	return merr.ErrorOrNil()
}

func checkAttr(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || !keyRe.MatchString(key) {
		return &apperr.ValidationError{Field: key, Msg: "invalid attribute label"}
	}
	switch strings.ToLower(key) {
	case "subtasks", "notes":
		return &apperr.ValidationError{Field: key, Msg: "reserved label"}
	}
	if strings.ContainsAny(value, "\r\n") || strings.Contains(value, "**") {
		return &apperr.ValidationError{Field: key, Msg: "value must be a single line without bold markup"}
	}
	if models.IsDateAttr(key) && strings.TrimSpace(value) != "" {
		if _, err := models.ParseDate(value); err != nil {
			return &apperr.ValidationError{Field: key, Msg: err.Error()}
		}
	}
	return nil
}

func checkLine(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return &apperr.ValidationError{Field: field, Msg: "text is required"}
	}
	if strings.ContainsAny(text, "\r\n") {
		return &apperr.ValidationError{Field: field, Msg: "text must be a single line"}
	}
	return nil
}

func checkNote(label, text string) error {
	if label != "" && !keyRe.MatchString(label) {
		return &apperr.ValidationError{Field: "Notes", Msg: fmt.Sprintf("invalid note label %q", label)}
	}
	for _, l := range strings.Split(text, "\n") {
		if boldLabelRe.MatchString(strings.TrimSpace(l)) {
			return &apperr.ValidationError{Field: "Notes", Msg: "note text must not contain bold-labeled lines"}
		}
	}
	return checkText("Notes", text, false)
}

// checkText rejects lines that would change the record structure when the
// text is rendered back to Markdown. A code fence left open would swallow
// the record terminator and every record after it.
func checkText(field, text string, leading bool) error {
	var fence string
	for i, l := range strings.Split(strings.TrimSpace(text), "\n") {
		t := strings.TrimRight(l, "\r")
		fence = nextFence(fence, t)
		switch {
		case strings.HasPrefix(t, "## "), strings.HasPrefix(t, "### "):
			return &apperr.ValidationError{Field: field, Msg: "level-2 and level-3 headings are not allowed"}
		case strings.TrimSpace(t) == "---":
			return &apperr.ValidationError{Field: field, Msg: `a "---" line would end the record`}
		case isBlockLabel(t):
			return &apperr.ValidationError{Field: field, Msg: "Subtasks and Notes labels are reserved"}
		case i == 0 && leading && boldLabelRe.MatchString(t):
			return &apperr.ValidationError{Field: field, Msg: "text would be read as a metadata line"}
		}
	}
	if fence != "" {
		return &apperr.ValidationError{Field: field, Msg: "unclosed " + fence + " code fence"}
	}
	return nil
}

// nextFence returns the fence still open after line l, given the fence open
// before it. Fences follow the parser: a line starting with ``` or ~~~ opens
// one and a line starting with the same marker closes it.
func nextFence(open, l string) string {
	t := strings.TrimLeft(l, " ")
	if open != "" {
		if strings.HasPrefix(t, open) {
			return ""
		}
		return open
	}
	for _, f := range []string{"```", "~~~"} {
		if strings.HasPrefix(t, f) {
			return f
		}
	}
	return ""
}

func isBlockLabel(l string) bool {
	t := strings.ToLower(strings.TrimSpace(l))
	return t == "**subtasks**:" || t == "**notes**:"
}
