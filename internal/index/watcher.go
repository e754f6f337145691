package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vigil/internal/master"
)

const debounce = 200 * time.Millisecond

// SyncCallback is called after each watcher-driven sync, successful or not.
type SyncCallback func(res SyncResult, err error)

// Watch starts an fsnotify watcher on the directory holding the master file
// and resyncs the mirror until ctx is cancelled. The directory is watched
// rather than the file because merges replace the file by renaming a
// temporary one over it. Bursts of events are coalesced into one sync.
//
// cb (if non-nil) is called after every sync attempt.
func Watch(ctx context.Context, db *DB, store *master.Store, logger *slog.Logger, cb SyncCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir, name := filepath.Split(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", store.Path()))

	var timer *time.Timer
	var timerCh <-chan time.Time
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
			res, syncErr := Sync(db, store, logger)
			if syncErr != nil {
				logger.Warn("watcher: sync failed", slog.String("error", syncErr.Error()))
			}
			if cb != nil {
				cb(res, syncErr)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				logger.Debug("watcher: master changed", slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
