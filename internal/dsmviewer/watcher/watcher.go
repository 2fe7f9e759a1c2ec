// Package watcher reports source changes below an analyzed root so that a
// session can tell its model is out of date.
package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
)

// Notifier receives the path of every relevant source change.
type Notifier interface {
	MarkStale(path string)
}

// Watcher monitors a source tree with fsnotify. Go files that are created,
// written, removed or renamed trigger the notifier; new directories are added
// to the watch list as they appear.
type Watcher struct {
	watcher  *fsnotify.Watcher
	notifier Notifier
	config   *config.Config
	log      *logger.Logger
	started  bool
	done     chan struct{}
}

// NewWatcher recursively watches rootDir, skipping the configured excluded
// directories and every dot directory (which holds the persisted model).
func NewWatcher(rootDir string, notifier Notifier, cfg *config.Config, log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		notifier: notifier,
		config:   cfg,
		log:      log,
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(rootDir); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Start runs the event loop in its own goroutine until Close.
func (w *Watcher) Start() {
	w.started = true
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("Watcher error", "error", err)
			}
		}
	}()
}

// Close stops the watcher. After a started watcher is closed no further
// notifications are delivered.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("Failed to watch directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !isSource(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.log.Debug("Source changed", "path", event.Name, "op", event.Op.String())
		w.notifier.MarkStale(event.Name)
	}
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && w.shouldIgnore(p) {
				return filepath.SkipDir
			}
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if w.config == nil {
		return false
	}
	for _, excl := range w.config.ExcludedDirs {
		if base == excl || strings.Contains(filepath.ToSlash(path), "/"+excl+"/") {
			return true
		}
	}
	return false
}

// isSource matches the files the analyzer reads.
func isSource(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}
