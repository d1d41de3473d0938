// Package watcher turns fsnotify notifications into the (kind, path) change
// events the rebuild loop consumes. Handlers run one event at a time on a
// single goroutine, so whatever they touch sees a single writer.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/smol/internal/logging"
)

// FileWatcher watches directory trees for file changes.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan ChangeEvent
	filters  []FileFilter
	handlers []ChangeHandler
	skipDir  func(path string) bool
	logger   logging.Logger
	now      func() time.Time
	mutex    sync.RWMutex
	stopOnce sync.Once
}

// ChangeEvent is one file change notification.
type ChangeEvent struct {
	Kind EventKind
	Path string
	Time time.Time
}

// EventKind classifies a change. Only Modified events lead to rebuilds.
type EventKind int

const (
	EventModified EventKind = iota
	EventOther
)

// String returns the string representation of the EventKind
func (e EventKind) String() string {
	switch e {
	case EventModified:
		return "modified"
	case EventOther:
		return "other"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be reported.
type FileFilter func(path string) bool

// ChangeHandler handles one change event.
type ChangeHandler func(ctx context.Context, event ChangeEvent) error

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(fw *FileWatcher) { fw.logger = logger.WithComponent("watcher") }
}

// WithSkipDir excludes directories, and everything below them, from
// AddRecursive and from directories created while watching.
func WithSkipDir(skip func(path string) bool) Option {
	return func(fw *FileWatcher) { fw.skipDir = skip }
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(opts ...Option) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		events:   make(chan ChangeEvent, 100),
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		skipDir:  func(string) bool { return false },
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(fw)
	}

	return fw, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a single directory to watch.
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(cleanPath)
}

// AddRecursive adds a directory and all subdirectories to watch, leaving
// out the directories the skip option rejects.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.Walk(cleanRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != cleanRoot && fw.skipDir(path) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// validatePath cleans a path and checks that it names an existing directory.
// Paths stay relative so event paths line up with the paths pages are
// built from.
func validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", cleanPath)
	}

	return cleanPath, nil
}

// Start starts the file watcher. Events are handled until ctx is done or
// the watcher is stopped.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !fw.skipDir(event.Name) {
				if err := fw.AddRecursive(event.Name); err != nil {
					fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", event.Name)
				}
			}
			return
		}
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	fw.Enqueue(ChangeEvent{
		Kind: Classify(event.Op),
		Path: filepath.Clean(event.Name),
		Time: fw.now(),
	})
}

// Enqueue hands event to the handlers as if it had come from the file
// system. Handlers that defer work use it to retry on the handler
// goroutine. The event is dropped when the queue is full.
func (fw *FileWatcher) Enqueue(event ChangeEvent) {
	select {
	case fw.events <- event:
	default:
		fw.logger.Warn(context.Background(), errors.New("event queue full"), "Dropping change event", "path", event.Path)
	}
}

// Classify maps an fsnotify operation onto an event kind. Writes are
// modifications. So are creates, since editors that save by renaming a
// temporary file over the original only produce a create for the path.
func Classify(op fsnotify.Op) EventKind {
	if op.Has(fsnotify.Write) || op.Has(fsnotify.Create) {
		return EventModified
	}
	return EventOther
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-fw.events:
			fw.dispatch(ctx, event)
		}
	}
}

func (fw *FileWatcher) dispatch(ctx context.Context, event ChangeEvent) {
	fw.mutex.RLock()
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			fw.logger.Error(ctx, err, "File watcher handler error", "path", event.Path, "kind", event.Kind.String())
		}
	}
}

// Common file filters

// NoHiddenFilter rejects paths with a dot-prefixed element, such as editor
// swap files and anything under .git.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return false
		}
	}
	return true
}

// NoBackupFilter rejects editor backup files ending in ~.
func NoBackupFilter(path string) bool {
	return !strings.HasSuffix(path, "~")
}

// UnderFilter returns a filter rejecting paths inside any of dirs.
func UnderFilter(dirs ...string) FileFilter {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d != "" {
			cleaned = append(cleaned, filepath.Clean(d))
		}
	}
	return func(path string) bool {
		path = filepath.Clean(path)
		for _, d := range cleaned {
			if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
				return false
			}
		}
		return true
	}
}
