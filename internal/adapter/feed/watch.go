package feed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a function whenever the feed file is rewritten. The upstream
// exporter replaces the file with an atomic rename, so the parent directory is
// watched and events are matched by file name.
type Watcher struct {
	path     string
	onChange func()
	logger   *slog.Logger
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, onChange func(), logger *slog.Logger) *Watcher {
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Start begins watching until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if w.matches(evt) {
					w.logger.Debug("feed file changed", "path", evt.Name, "op", evt.Op.String())
					w.onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("feed watcher error", "error", err)
			}
		}
	}()

	w.logger.Info("watching feed file", "path", w.path)
	return nil
}

func (w *Watcher) matches(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(evt.Name) == filepath.Clean(w.path)
}
