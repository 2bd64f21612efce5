package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/taskboard/internal/checksum"
	"github.com/starford/taskboard/internal/ledger"
	"github.com/starford/taskboard/internal/models"
	"github.com/starford/taskboard/internal/parser"
	"github.com/starford/taskboard/internal/storage"
)

// Files names the two ledger files of a board directory.
type Files struct {
	Active  string
	Archive string
}

// Location returns the ledger location a file name belongs to.
func (f Files) Location(name string) (string, bool) {
	switch name {
	case f.Active:
		return string(ledger.LocationActive), true
	case f.Archive:
		return string(ledger.LocationArchive), true
	}
	return "", false
}

// Sync brings the index up to date with both ledger files. Files whose
// checksum matches the indexed one are skipped; a missing file empties
// its location.
func Sync(db *DB, store storage.Provider, files Files, logger *slog.Logger) error {
	for _, name := range []string{files.Active, files.Archive} {
		if _, err := IndexFile(db, store, files, name, logger); err != nil {
			return err
		}
	}
	return nil
}

// IndexFile re-indexes one ledger file when its content changed. It reports
// whether the index was modified.
func IndexFile(db *DB, store storage.Provider, files Files, name string, logger *slog.Logger) (bool, error) {
	loc, ok := files.Location(name)
	if !ok {
		return false, fmt.Errorf("index: %s is not a ledger file", name)
	}

	data, err := store.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return false, err
	}

	cs := ""
	if data != nil {
		cs = checksum.Sum(data)
	}
	known, err := db.FileChecksum(name)
	if err != nil {
		return false, err
	}
	if known == cs {
		return false, nil
	}

	doc := models.NewDocument()
	problems := 0
	if data != nil {
		parse := parser.Parse
		if loc == string(ledger.LocationArchive) {
			parse = parser.ParseArchive
		}
		res, err := parse(data)
		if err != nil {
			return false, fmt.Errorf("index: parse %s: %w", name, err)
		}
		for _, p := range res.Problems {
			logger.Warn("index: ledger problem", slog.String("file", name), slog.String("error", p.Error()))
		}
		doc = res.Doc
		problems = len(res.Problems)
	}

	if err := db.ReplaceDocument(name, loc, doc, cs, problems); err != nil {
		return false, err
	}
	logger.Debug("index: indexed", slog.String("file", name), slog.Int("tasks", len(doc.Records())))
	return true, nil
}
