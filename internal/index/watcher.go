package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/taskboard/internal/storage"
)

// EventCallback is called after a watcher-driven index change with the
// ledger file name that changed.
type EventCallback func(name string)

const debounce = 150 * time.Millisecond

// Watch starts an fsnotify watcher on the board directory and re-indexes
// the ledger files when they change outside this process, until ctx is
// cancelled. Writes made through the service are already indexed and are
// skipped by checksum. cb (if non-nil) is called after each re-index.
//
// The directory rather than the files is watched because atomic writes
// replace the file inode on every save.
func Watch(ctx context.Context, db *DB, store storage.Provider, files Files, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// timer debounces bursts of events (temp file, rename, chmod).
	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for name := range pending {
				changed, idxErr := IndexFile(db, store, files, name, logger)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("file", name), slog.String("error", idxErr.Error()))
					continue
				}
				if changed {
					logger.Info("watcher: external change indexed", slog.String("file", name))
					if cb != nil {
						cb(name)
					}
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if _, ledgerFile := files.Location(name); !ledgerFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
