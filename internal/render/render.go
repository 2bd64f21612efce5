// Package render serializes ledger documents back to Markdown. Records that
// were not modified since parsing are emitted from their source lines, so an
// untouched document renders byte-identical to its input.
package render

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/models"
)

// DefaultCounterPrefix and DefaultCounterSuffix frame a new counter header.
const (
	DefaultCounterPrefix = "<!-- Config: Last Task ID: "
	DefaultCounterSuffix = " -->"
)

var labelLineRe = regexp.MustCompile(`^\*\*[^*]+?\*\*:`)

// Document renders doc. It refuses to emit a counter lower than the highest
// record id present.
func Document(doc *models.Document) ([]byte, error) {
	if doc.HasCounter() {
		if maxID := doc.MaxID(); doc.LastID < maxID {
			return nil, fmt.Errorf("render: Last Task ID %d is below highest id %d: %w",
				doc.LastID, maxID, apperr.ErrCounterInconsistency)
		}
	}

	var lines []string
	for i, l := range doc.Preamble {
		if i == doc.CounterLine {
			l = doc.CounterPrefix + strconv.Itoa(doc.LastID) + doc.CounterSuffix
		}
		lines = append(lines, l)
	}
	for _, sec := range doc.Sections {
		lines = append(lines, sec.HeadingRaw)
		lines = append(lines, sec.Lead...)
		for _, b := range sec.Blocks {
			if b.Record == nil {
				lines = append(lines, b.Fragment...)
				continue
			}
			lines = append(lines, Record(b.Record)...)
		}
	}

	out := strings.Join(lines, "\n")
	if doc.FinalNewline {
		out += "\n"
	}
	return []byte(out), nil
}

// Record returns the lines of r: its source lines when untouched, otherwise
// the canonical layout.
func Record(r *models.Record) []string {
	if r.Raw != nil {
		return r.Raw
	}

	lines := []string{"### " + r.ID + " | " + r.Title, ""}

	if meta := metadataLines(r.Attributes); len(meta) > 0 {
		lines = append(lines, meta...)
		lines = append(lines, "")
	}
	if r.Body != "" {
		lines = append(lines, strings.Split(r.Body, "\n")...)
		lines = append(lines, "")
	}
	if r.HasSubtasks || len(r.Checklist) > 0 {
		lines = append(lines, "**Subtasks**:")
		for _, item := range r.Checklist {
			mark := " "
			if item.Done {
				mark = "x"
			}
			lines = append(lines, "- ["+mark+"] "+item.Text)
		}
		lines = append(lines, "")
	}
	if r.HasNotes || len(r.Notes) > 0 {
		lines = append(lines, "**Notes**:", "")
		for _, n := range r.Notes {
			text := strings.Split(n.Text, "\n")
			switch {
			case n.Label == "":
			case labelLineRe.MatchString(text[0]):
				lines = append(lines, "**"+n.Label+"**: "+text[0])
				text = text[1:]
			default:
				lines = append(lines, "**"+n.Label+"**:")
			}
			if n.Text != "" {
				lines = append(lines, text...)
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, "---")
	if r.Trailer != nil {
		return append(lines, r.Trailer...)
	}
	return append(lines, "")
}

func metadataLines(attrs []models.Attribute) []string {
	byLine := make(map[int][]string)
	var order []int
	for _, a := range attrs {
		if _, ok := byLine[a.Line]; !ok {
			order = append(order, a.Line)
		}
		byLine[a.Line] = append(byLine[a.Line], "**"+a.Key+"**: "+a.Value)
	}
	slices.Sort(order)
	out := make([]string, 0, len(order))
	for _, n := range order {
		out = append(out, strings.Join(byLine[n], " | "))
	}
	return out
}

// Header returns a counter comment line for a document that has none.
func Header(lastID int) string {
	return DefaultCounterPrefix + strconv.Itoa(lastID) + DefaultCounterSuffix
}
