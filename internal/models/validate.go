package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/taskboard/internal/apperr"
)

// DateLayout is the canonical date format written by taskboard.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate parses an ISO-8601 date or date-time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
}

// IsDateAttr reports whether key names one of the well-known date fields.
func IsDateAttr(key string) bool {
	return attrGroup(key) == 1
}

// Validate checks date formats and the created ≤ started ≤ finished order.
func (r *Record) Validate() []*apperr.ValidationError {
	var errs []*apperr.ValidationError
	dates := make(map[string]time.Time)
	for _, a := range r.Attributes {
		if !IsDateAttr(a.Key) || strings.TrimSpace(a.Value) == "" {
			continue
		}
		t, err := ParseDate(a.Value)
		if err != nil {
			errs = append(errs, &apperr.ValidationError{RecordID: r.ID, Field: a.Key, Line: r.Line, Msg: err.Error()})
			continue
		}
		dates[strings.ToLower(a.Key)] = t
	}
	if _, ok := dates["finished"]; !ok {
		if t, ok := dates["completed"]; ok {
			dates["finished"] = t
		}
	}

	order := []string{"created", "started", "finished"}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, okA := dates[order[i]]
			b, okB := dates[order[j]]
			if okA && okB && dateOnly(b).Before(dateOnly(a)) {
				errs = append(errs, &apperr.ValidationError{
					RecordID: r.ID,
					Field:    titleCase(order[j]),
					Line:     r.Line,
					Msg:      fmt.Sprintf("%s date precedes %s date", order[j], order[i]),
				})
			}
		}
	}

	if strings.ContainsAny(r.Title, "\r\n") {
		errs = append(errs, &apperr.ValidationError{RecordID: r.ID, Field: "Title", Line: r.Line, Msg: "title must be a single line"})
	}
	return errs
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
