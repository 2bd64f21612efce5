// Package ledger implements the id allocator and the all-or-nothing mutations
// of the active/archive document pair.
package ledger

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/render"
)

// Defaults for id formatting.
const (
	DefaultPrefix = "TASK"
	DefaultWidth  = 3
)

var prefixRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// FormatID formats n with a zero-padded minimum width. Numbers that do not
// fit widen the id instead of failing (TASK-1000 after TASK-999).
func FormatID(prefix string, width, n int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

// Allocate issues the next id and returns it with an updated copy of doc.
// doc itself is not modified. A counter already behind the highest id is
// reported instead of being corrected.
func Allocate(doc *models.Document, prefix string, width int) (string, *models.Document, error) {
	if !prefixRe.MatchString(prefix) {
		return "", nil, &apperr.ValidationError{Field: "id_prefix", Msg: fmt.Sprintf("invalid id prefix %q", prefix)}
	}
	if width < 1 {
		width = 1
	}
	if maxID := doc.MaxID(); doc.LastID < maxID {
		return "", nil, fmt.Errorf("ledger: Last Task ID %d is below highest id %d: %w",
			doc.LastID, maxID, apperr.ErrCounterInconsistency)
	}

	out := doc.Clone()
	if !out.HasCounter() {
		header := []string{render.Header(0)}
		if len(out.Preamble) == 0 || out.Preamble[0] != "" {
			header = append(header, "")
		}
		out.Preamble = slices.Concat(header, out.Preamble)
		out.CounterLine = 0
		out.CounterPrefix = render.DefaultCounterPrefix
		out.CounterSuffix = render.DefaultCounterSuffix
		if len(doc.Preamble) == 0 && len(doc.Sections) == 0 {
			out.FinalNewline = true
		}
	}
	out.LastID++
	return FormatID(prefix, width, out.LastID), out, nil
}
