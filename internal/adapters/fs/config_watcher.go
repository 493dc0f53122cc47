package fs

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/keel/internal/ports"
)

// DefaultDebounceDelay is the delay after the last change before onChange runs.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConfigWatcher watches a single config file and calls onChange after it
// settles. The parent directory is watched so atomic renames by editors and
// config-management tools are seen.
type ConfigWatcher struct {
	path     string
	delay    time.Duration
	onChange func()
	logger   ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewConfigWatcher creates a watcher for path. A non-positive delay uses DefaultDebounceDelay.
func NewConfigWatcher(path string, delay time.Duration, logger ports.Logger, onChange func()) *ConfigWatcher {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		delay:    delay,
		onChange: onChange,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. It returns an error only if the watch
// cannot be established.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info("config watcher started", ports.String("path", w.path))
	defer w.stopDebounce()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", ports.Err(err))
		}
	}
}

func (w *ConfigWatcher) debounceChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.onChange)
}

func (w *ConfigWatcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
