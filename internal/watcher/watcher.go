// Package watcher re-syncs galleries when their source images change.
//
// Every directory under the root is watched. A change to an image file marks
// its directory dirty; once the directory has been quiet for the debounce
// interval it is re-synced, but only if it already carries a sidecar. Our
// own composites and sidecars never mark a directory dirty.
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

	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/scanner"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	"github.com/jonasrichard/mediamosaic/internal/sprite"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
)

// DefaultDebounce is how long a directory must stay quiet before re-sync.
const DefaultDebounce = 2 * time.Second

// Syncer queues directory rebuilds. *syncer.Coordinator satisfies it.
type Syncer interface {
	Sync(ctx context.Context, relPath string) (*syncer.Command, error)
}

// Watcher turns file system events into sync requests.
type Watcher struct {
	fsw       *fsnotify.Watcher
	sandbox   *sandbox.Sandbox
	syncer    Syncer
	extension string
	debounce  time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	dirty map[string]time.Time // absolute dir -> last change
}

// New creates a Watcher for every directory under the sandbox root.
func New(sb *sandbox.Sandbox, s Syncer, extension string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if extension == "" {
		extension = scanner.DefaultExtension
	}

	w := &Watcher{
		fsw:       fsw,
		sandbox:   sb,
		syncer:    s,
		extension: extension,
		debounce:  debounce,
		logger:    logging.Component(logger, "watcher"),
		dirty:     make(map[string]time.Time),
	}
	if err := w.addTree(sb.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and all of its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// WatchedCount returns the number of watched directories.
func (w *Watcher) WatchedCount() int {
	return len(w.fsw.WatchList())
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	w.logger.Info("watching for changes", "root", w.sandbox.Root(), "directories", w.WatchedCount())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if isDir(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.relevant(event) {
		return
	}

	w.mu.Lock()
	w.dirty[filepath.Dir(event.Name)] = time.Now()
	w.mu.Unlock()
}

// relevant reports whether event touches a source image.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if sprite.IsComposite(name) {
		return false
	}
	return scanner.IsImage(name, w.extension)
}

// flush re-syncs directories that have been quiet long enough.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string

	w.mu.Lock()
	for dir, changed := range w.dirty {
		if now.Sub(changed) < w.debounce {
			continue
		}
		ready = append(ready, dir)
		delete(w.dirty, dir)
	}
	w.mu.Unlock()

	for _, dir := range ready {
		if !sidecar.Exists(dir) {
			continue
		}
		rel, err := w.sandbox.ToRelative(dir)
		if err != nil {
			w.logger.Warn("change outside root", "dir", dir, "error", err)
			continue
		}
		cmd, err := w.syncer.Sync(ctx, rel)
		if err != nil {
			w.logger.Error("failed to queue re-sync", "dir", rel, "error", err)
			continue
		}
		w.logger.Info("directory changed, re-sync queued", "dir", rel, "run", cmd.ID)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
