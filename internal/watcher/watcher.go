// Package watcher monitors library roots for file system changes and turns
// bursts of raw events into settled change notifications.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one settled notification: a directory under a watched root went
// quiet after activity.
type Change struct {
	// Dir is the directory that changed.
	Dir string
	// At is when the burst settled.
	At time.Time
}

// Watcher watches directory trees with fsnotify, debouncing event bursts:
// copying a book folder in produces one Change after the tree goes quiet,
// not hundreds of raw events.
type Watcher struct {
	logger *slog.Logger
	opts   Options
	fsw    *fsnotify.Watcher

	changes chan Change
	errs    chan error

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher. Call Watch for each root, then Start.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		logger:  logger,
		opts:    opts,
		fsw:     fsw,
		changes: make(chan Change, 16),
		errs:    make(chan error, 1),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Watch adds a directory tree to be monitored. fsnotify is not recursive,
// so every subdirectory is registered individually; directories created
// later are picked up from their create events.
func (w *Watcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watch walk error", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.opts.shouldIgnore(path) && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Start processes events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
			}
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		}
	}
}

// Stop releases watch resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for dir, timer := range w.pending {
		timer.Stop()
		delete(w.pending, dir)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// Changes returns the settled change notifications.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel for receiving watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.opts.shouldIgnore(event.Name) {
		return
	}

	// New directories must be registered before their contents produce
	// events of their own.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err == nil {
				w.logger.Debug("watching new directory", "path", event.Name)
			}
		}
	}

	dir := filepath.Dir(event.Name)
	w.touch(dir)
}

// touch (re)starts the settle timer for a directory. The Change fires only
// after the directory stays quiet for the full settle delay.
func (w *Watcher) touch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[dir]; ok {
		timer.Reset(w.opts.SettleDelay)
		return
	}
	w.pending[dir] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		w.mu.Unlock()

		select {
		case w.changes <- Change{Dir: dir, At: time.Now()}:
		default:
			w.logger.Warn("change notification dropped", "dir", dir)
		}
	})
}
