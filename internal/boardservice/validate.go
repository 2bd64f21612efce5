package boardservice

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/starford/taskboard/internal/apperr"
)

// Problem is one finding of Validate, located in a ledger file.
type Problem struct {
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

// Report lists every problem of both files. An empty report means the board
// is valid.
type Report struct {
	Valid    bool      `json:"valid"`
	Problems []Problem `json:"problems"`
}

// Validate parses both files and checks the cross-document invariants.
func (s *Service) Validate(_ context.Context) (*Report, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	problems := problemsOf(s.files.Active, snap.activeRes.Problems)
	problems = append(problems, problemsOf(s.files.Archive, snap.archiveRes.Problems)...)

	if err := snap.store.Validate(); err != nil {
		var merr *multierror.Error
		errs := []error{err}
		if errors.As(err, &merr) {
			errs = merr.Errors
		}
		for _, e := range errs {
			p := problem(s.files.Active, e)
			if verr := (*apperr.ValidationError)(nil); errors.As(e, &verr) && verr.RecordID != "" && snap.inArchive(verr.RecordID) {
				p.File = s.files.Archive
			}
			if !contains(problems, p) {
				problems = append(problems, p)
			}
		}
	}
	return &Report{Valid: len(problems) == 0, Problems: problems}, nil
}

// inArchive reports whether the only record with id lives in the archive.
func (snap *snapshot) inArchive(id string) bool {
	if sec, _ := snap.store.Active.Find(id); sec != nil {
		return false
	}
	sec, _ := snap.store.Archive.Find(id)
	return sec != nil
}

func problemsOf(file string, errs []error) []Problem {
	out := make([]Problem, 0, len(errs))
	for _, err := range errs {
		out = append(out, problem(file, err))
	}
	return out
}

func problem(file string, err error) Problem {
	p := Problem{File: file, Message: err.Error()}
	var perr *apperr.ParseError
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &perr):
		p.Line, p.RecordID, p.Message = perr.Line, perr.RecordID, perr.Rule
	case errors.As(err, &verr):
		p.Line, p.RecordID = verr.Line, verr.RecordID
	}
	return p
}

func contains(ps []Problem, p Problem) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}
