// Package boardservice coordinates the ledger files, the in-memory mutator
// and the task index. Every mutation reads both files, applies the change on
// copies, verifies nobody wrote the files meanwhile and writes the archive
// before the active board.
package boardservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/starford/taskboard/internal/apperr"
	"github.com/starford/taskboard/internal/checksum"
	"github.com/starford/taskboard/internal/index"
	"github.com/starford/taskboard/internal/ledger"
	"github.com/starford/taskboard/internal/parser"
	"github.com/starford/taskboard/internal/render"
	"github.com/starford/taskboard/internal/storage"
)

// Publisher receives task change notifications (the SSE broker).
type Publisher interface {
	PublishTaskEvent(kind, id string)
}

// ErrNotInitialized reports a board directory without an active file.
var ErrNotInitialized = fmt.Errorf("board is not initialized (run init): %w", apperr.ErrNotFound)

// errConcurrentEdit marks a write that lost the race with another writer.
var errConcurrentEdit = errors.New("ledger file changed during update")

const writeAttempts = 3

// Service coordinates storage, ledger and index operations.
type Service struct {
	mu     sync.Mutex
	store  storage.Provider
	db     index.TaskIndex
	files  index.Files
	prefix string
	width  int
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIDFormat sets the id prefix and minimum digit width of new tasks.
func WithIDFormat(prefix string, width int) Option {
	return func(s *Service) {
		s.prefix, s.width = prefix, width
	}
}

// WithPublisher sets the receiver of task events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a board service over the two ledger files.
func New(store storage.Provider, db index.TaskIndex, files index.Files, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		files:  files,
		prefix: ledger.DefaultPrefix,
		width:  ledger.DefaultWidth,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Files returns the ledger file names.
func (s *Service) Files() index.Files { return s.files }

// snapshot is one consistent read of both ledger files.
type snapshot struct {
	store      *ledger.Store
	active     []byte
	archive    []byte
	activeSum  string
	archiveSum string
	hasArchive bool
	activeRes  *parser.Result
	archiveRes *parser.Result
}

// load reads and parses both files. A missing active board is reported as
// not found; a missing archive is treated as empty.
func (s *Service) load() (*snapshot, error) {
	active, err := s.store.Read(s.files.Active)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("boardservice: %s: %w", s.files.Active, ErrNotInitialized)
	}
	if err != nil {
		return nil, err
	}
	snap := &snapshot{active: active, activeSum: checksum.Sum(active), hasArchive: true}

	archive, err := s.store.Read(s.files.Archive)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap.hasArchive = false
	case err != nil:
		return nil, err
	default:
		snap.archive = archive
		snap.archiveSum = checksum.Sum(archive)
	}

	if snap.activeRes, err = parser.Parse(active); err != nil {
		return nil, fmt.Errorf("boardservice: parse %s: %w", s.files.Active, err)
	}
	if snap.archiveRes, err = parser.ParseArchive(archive); err != nil {
		return nil, fmt.Errorf("boardservice: parse %s: %w", s.files.Archive, err)
	}
	snap.store = ledger.NewStore(snap.activeRes.Doc, snap.archiveRes.Doc, ledger.WithIDFormat(s.prefix, s.width))
	return snap, nil
}

// read loads a snapshot under the service lock.
func (s *Service) read() (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// mutate runs fn against a fresh snapshot and persists the result. fn may run
// more than once when another writer changes a file between read and write,
// so it must only capture its results. A non-empty ifMatch must equal the
// active board checksum. It returns the checksum of the written active board.
func (s *Service) mutate(ctx context.Context, ifMatch string, fn func(st *ledger.Store) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		activeOut, archiveOut []byte
		result                *snapshot
	)
	err := retry.Do(
		func() error {
			snap, err := s.load()
			if err != nil {
				return err
			}
			if !checksum.Matches(ifMatch, snap.activeSum) {
				return fmt.Errorf("boardservice: %s checksum mismatch: %w", s.files.Active, apperr.ErrConflict)
			}
			if err := fn(snap.store); err != nil {
				return err
			}
			if activeOut, err = render.Document(snap.store.Active); err != nil {
				return err
			}
			if archiveOut, err = render.Document(snap.store.Archive); err != nil {
				return err
			}
			if err := s.verifyUnchanged(snap); err != nil {
				return err
			}
			archiveWritten := string(archiveOut) != string(snap.archive)
			if archiveWritten {
				if err := s.store.Write(s.files.Archive, archiveOut); err != nil {
					return fmt.Errorf("boardservice: write %s: %w", s.files.Archive, err)
				}
			}
			if string(activeOut) != string(snap.active) {
				if err := s.store.Write(s.files.Active, activeOut); err != nil {
					err = fmt.Errorf("boardservice: write %s: %w", s.files.Active, err)
					if archiveWritten {
						return s.restoreArchive(snap, err)
					}
					return err
				}
			}
			result = snap
			return nil
		},
		retry.RetryIf(func(err error) bool { return errors.Is(err, errConcurrentEdit) }),
		retry.Attempts(writeAttempts),
		retry.Delay(20*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("boardservice: retrying update", slog.Uint64("attempt", uint64(n+1)), slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		if errors.Is(err, errConcurrentEdit) {
			return "", fmt.Errorf("boardservice: %w: %w", apperr.ErrConflict, err)
		}
		return "", err
	}

	s.reindex(result, activeOut, archiveOut)
	return checksum.Sum(activeOut), nil
}

// restoreArchive puts back the archive bytes of snap after the active write
// failed, so an archived record does not end up in both files. A missing
// archive is restored as an empty file.
func (s *Service) restoreArchive(snap *snapshot, cause error) error {
	if err := s.store.Write(s.files.Archive, snap.archive); err != nil {
		s.logger.Error("boardservice: archive rollback failed",
			slog.String("file", s.files.Archive), slog.String("error", err.Error()))
		return multierror.Append(cause, fmt.Errorf("boardservice: restore %s: %w", s.files.Archive, err))
	}
	return cause
}

// verifyUnchanged re-reads both files and fails when either differs from
// the snapshot.
func (s *Service) verifyUnchanged(snap *snapshot) error {
	active, err := s.store.Read(s.files.Active)
	if err != nil || checksum.Sum(active) != snap.activeSum {
		return fmt.Errorf("boardservice: %s: %w", s.files.Active, errConcurrentEdit)
	}
	archive, err := s.store.Read(s.files.Archive)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if snap.hasArchive {
			return fmt.Errorf("boardservice: %s: %w", s.files.Archive, errConcurrentEdit)
		}
	case err != nil:
		return err
	case !snap.hasArchive || checksum.Sum(archive) != snap.archiveSum:
		return fmt.Errorf("boardservice: %s: %w", s.files.Archive, errConcurrentEdit)
	}
	return nil
}

// reindex pushes freshly written documents into the index. Failures are
// logged: the files are already the source of truth and Sync repairs the
// index on the next start.
func (s *Service) reindex(snap *snapshot, active, archive []byte) {
	if s.db == nil {
		return
	}
	if err := s.db.ReplaceDocument(s.files.Active, string(ledger.LocationActive), snap.store.Active,
		checksum.Sum(active), len(snap.activeRes.Problems)); err != nil {
		s.logger.Warn("boardservice: index active failed", slog.String("error", err.Error()))
	}
	archiveSum := ""
	if len(archive) > 0 {
		archiveSum = checksum.Sum(archive)
	}
	if err := s.db.ReplaceDocument(s.files.Archive, string(ledger.LocationArchive), snap.store.Archive,
		archiveSum, len(snap.archiveRes.Problems)); err != nil {
		s.logger.Warn("boardservice: index archive failed", slog.String("error", err.Error()))
	}
}

func (s *Service) publish(kind, id string) {
	if s.events != nil {
		s.events.PublishTaskEvent(kind, id)
	}
}

// Reindex rebuilds the index from both files regardless of stored checksums.
func (s *Service) Reindex(_ context.Context) error {
	snap, err := s.read()
	if err != nil {
		return err
	}
	if s.db == nil {
		return nil
	}
	if err := s.db.ReplaceDocument(s.files.Active, string(ledger.LocationActive), snap.store.Active, snap.activeSum, len(snap.activeRes.Problems)); err != nil {
		return err
	}
	return s.db.ReplaceDocument(s.files.Archive, string(ledger.LocationArchive), snap.store.Archive, snap.archiveSum, len(snap.archiveRes.Problems))
}
