package autoreply

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the rule table when the config file changes on disk, so
// edits made by other tooling take effect without a restart. Events are
// debounced because editors produce bursts of writes. The watcher stops
// when ctx is cancelled.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(e.path); err != nil {
		// The file may not exist until the first Save; watch its directory
		// so the create shows up.
		slog.Warn("autoreply: watch add", "path", e.path, "err", err)
		w.Close()
		return nil
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						slog.Error("autoreply: watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				e.Reload()
				slog.Info("autoreply: config reloaded", "path", e.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("autoreply: watch error", "err", err)
			}
		}
	}()
	return nil
}
