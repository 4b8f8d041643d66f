package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/roach88/bouncer/internal/event"
)

// defaultIgnores are always skipped regardless of configuration.
var defaultIgnores = []string{
	".git", "node_modules", ".bouncer", "__pycache__", "venv",
}

// Watcher produces ChangeEvents from filesystem notifications.
//
// It watches the root directory (recursively when configured), follows
// directories created after startup, filters ignored paths, and
// fingerprints files that are still readable. Delivery to the observe
// callback is at-least-once with no cross-path ordering guarantee.
type Watcher struct {
	root      string
	recursive bool
	ignores   []string
	observe   func(event.ChangeEvent)
	logger    *slog.Logger

	fsw *fsnotify.Watcher
}

// NewWatcher creates a watcher rooted at dir. observe is invoked on the
// watcher's goroutine for every surviving notification; it must not
// block (the debouncer's Observe satisfies this).
func NewWatcher(dir string, recursive bool, ignores []string, observe func(event.ChangeEvent), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:      dir,
		recursive: recursive,
		ignores:   append(append([]string{}, defaultIgnores...), ignores...),
		observe:   observe,
		logger:    logger,
		fsw:       fsw,
	}

	if err := w.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run consumes notifications until the context is cancelled. The
// fsnotify handle is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching", "dir", w.root, "recursive", w.recursive)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fe, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fe)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Watch errors are transient (overflow, unreadable entries);
			// log and keep watching.
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handle maps one fsnotify notification to a ChangeEvent.
func (w *Watcher) handle(fe fsnotify.Event) {
	if w.ignored(fe.Name) {
		return
	}

	var kind event.Kind
	switch {
	case fe.Op.Has(fsnotify.Create):
		kind = event.KindCreated
	case fe.Op.Has(fsnotify.Write):
		kind = event.KindModified
	case fe.Op.Has(fsnotify.Remove):
		kind = event.KindDeleted
	case fe.Op.Has(fsnotify.Rename):
		kind = event.KindRenamed
	default:
		// Chmod and friends carry no content change.
		return
	}

	info, err := os.Stat(fe.Name)
	if kind == event.KindCreated && err == nil && info.IsDir() {
		if w.recursive {
			if err := w.addTree(fe.Name); err != nil {
				w.logger.Warn("watch new directory", "dir", fe.Name, "error", err)
			}
		}
		return
	}
	if err == nil && info.IsDir() {
		return
	}

	ev := event.ChangeEvent{
		Path:       fe.Name,
		Kind:       kind,
		ObservedAt: time.Now(),
	}
	if kind == event.KindCreated || kind == event.KindModified {
		if fp, err := event.FingerprintFile(fe.Name); err == nil {
			ev.Fingerprint = fp
		}
		// An unreadable file still produces an event; checks see the
		// zero fingerprint and decide for themselves.
	}

	w.observe(ev)
}

// addTree registers dir (and, recursively, its subdirectories) with
// fsnotify, skipping ignored paths.
func (w *Watcher) addTree(dir string) error {
	if !w.recursive {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether a path matches any ignore pattern. Patterns are
// matched as doublestar globs against the path relative to the watch
// root, and as plain substrings for bare names like ".git".
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pat := range w.ignores {
		if strings.Contains("/"+rel+"/", "/"+pat+"/") {
			return true
		}
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
