// Package watcher provides recursive file system watching with debouncing
// for the source tree of a project.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/paths"
)

// Change lists the source files touched during one debounce window, as
// sorted slash-separated paths relative to the root. Removed files are
// included.
type Change struct {
	Paths []string
}

// Watcher monitors a source tree and sends debounced change notifications.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	filter    paths.Filter
	debounce  time.Duration
	onChange  chan Change
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Root        string
	Filter      paths.Filter
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(root string, filter paths.Filter) Config {
	return Config{
		Root:        root,
		Filter:      filter,
		DebounceDur: 100 * time.Millisecond,
	}
}

// New creates a new source tree watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      cfg.Root,
		filter:    cfg.Filter,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan Change, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start watches every non-excluded directory below the root.
// Returns a channel that receives the files changed in each debounce window.
func (w *Watcher) Start() (<-chan Change, error) {
	if err := w.addTree(w.root); err != nil {
		return nil, err
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// addTree adds dir and its subdirectories, skipping excluded ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories may vanish while walking.
			if errors.Is(err, fs.ErrNotExist) && p != w.root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(p); ok && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(p); err != nil {
			return fmt.Errorf("watching directory %s: %w", p, err)
		}
		return nil
	})
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = make(map[string]struct{})
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			rel, relevant := w.handle(event)
			if !relevant {
				continue
			}
			pending[rel] = struct{}{}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(pending) > 0 {
				w.send(pending)
				pending = make(map[string]struct{})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// send delivers the pending paths. An undelivered earlier change is merged
// so no path is lost when the consumer is slow.
func (w *Watcher) send(pending map[string]struct{}) {
	c := Change{Paths: make([]string, 0, len(pending))}
	for p := range pending {
		c.Paths = append(c.Paths, p)
	}

	select {
	case w.onChange <- sortChange(c):
		return
	default:
	}

	select {
	case old := <-w.onChange:
		c.Paths = append(c.Paths, old.Paths...)
	default:
	}
	w.onChange <- sortChange(c)
}

func sortChange(c Change) Change {
	sort.Strings(c.Paths)
	c.Paths = compactStrings(c.Paths)
	return c
}

func compactStrings(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// handle reports the relative path of a relevant event. New directories are
// added to the watch list.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	rel, ok := w.rel(event.Name)
	if !ok || w.ignored(rel) {
		return "", false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				log.Warn(log.CatWatcher, "failed to watch new directory", "dir", rel, "error", err)
			}
			return "", false
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	if !w.filter.Match(rel) {
		return "", false
	}
	log.Debug(log.CatWatcher, "source changed", "path", rel, "op", event.Op.String())
	return rel, true
}

// ignored reports whether rel is excluded or inside the state directory.
func (w *Watcher) ignored(rel string) bool {
	if rel == paths.StateDir || strings.HasPrefix(rel, paths.StateDir+"/") {
		return true
	}
	return w.filter.Excluded(rel)
}

func (w *Watcher) rel(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
