// Package apperr holds the error taxonomy shared by every layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid")

	ErrSectionNotFound      = fmt.Errorf("section %w", ErrNotFound)
	ErrRecordNotFound       = fmt.Errorf("record %w", ErrNotFound)
	ErrNotFinished          = errors.New("record has no finished date")
	ErrCounterInconsistency = errors.New("last id counter is behind the highest id")
	ErrDuplicateID          = fmt.Errorf("record id %w", ErrAlreadyExists)
)

// ParseError reports a structural rule violated at a location in the text.
type ParseError struct {
	Line     int    `json:"line"`
	Offset   int    `json:"offset"`
	RecordID string `json:"record_id,omitempty"`
	Rule     string `json:"rule"`
}

func (e *ParseError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("line %d (offset %d): %s: %s", e.Line, e.Offset, e.RecordID, e.Rule)
	}
	return fmt.Sprintf("line %d (offset %d): %s", e.Line, e.Offset, e.Rule)
}

// Is lets errors.Is(err, ErrInvalid) match parse errors.
func (e *ParseError) Is(target error) bool { return target == ErrInvalid }

// ValidationError reports a well-formed but semantically invalid record field.
type ValidationError struct {
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Line     int    `json:"line,omitempty"`
	Msg      string `json:"message"`
	// Err optionally links the failure to a sentinel such as ErrDuplicateID.
	Err error `json:"-"`
}

func (e *ValidationError) Error() string {
	s := e.Msg
	if e.Field != "" {
		s = e.Field + ": " + s
	}
	if e.RecordID != "" {
		s = e.RecordID + ": " + s
	}
	if e.Line > 0 {
		s = fmt.Sprintf("line %d: %s", e.Line, s)
	}
	return s
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func (e *ValidationError) Unwrap() error { return e.Err }
