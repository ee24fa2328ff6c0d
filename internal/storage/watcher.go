package storage

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the key whose file was changed by another
// process.
type ChangeCallback func(key string)

// Watch starts an fsnotify watcher on the FS data directory and reports keys
// whose files were written by someone else, until ctx is cancelled. Bursts
// of events for a key are collapsed into one callback after quiet has
// passed. Files matching our own last write are ignored.
func Watch(ctx context.Context, fs *FS, quiet time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}
	if quiet <= 0 {
		quiet = 200 * time.Millisecond
	}

	logger.Info("watcher: started", slog.String("root", fs.Root()))

	dirty := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(quiet)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(quiet)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for key := range dirty {
				delete(dirty, key)
				data, ok, loadErr := fs.Load(key)
				if loadErr != nil || !ok {
					continue
				}
				if fs.IsOwnWrite(key, data) {
					continue
				}
				logger.Debug("watcher: external change", slog.String("key", key))
				cb(key)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			key, isKey := fs.KeyOf(ev.Name)
			if !isKey {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr != nil || info.IsDir() {
				continue
			}
			dirty[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
