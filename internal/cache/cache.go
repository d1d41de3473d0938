// Package cache holds the per-file records a build reads through: file
// content with its header block stripped, the parsed headers, when the file
// was loaded, and which other files consulted it while rendering.
//
// A Cache is owned by one build or watch session. It does no locking; the
// caller serializes every mutation.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/logging"
)

// File is the cached record for one path.
type File struct {
	Path string
	// Content is the file body. For text documents the header block has
	// been removed.
	Content []byte
	// IsText marks documents that are parsed as templates.
	IsText  bool
	Headers map[string]string
	Updated time.Time

	dependents   []string
	dependentSet map[string]struct{}
}

// Text returns the content as a string.
func (f *File) Text() string {
	return string(f.Content)
}

// Dependents returns the files recorded as having read this one, in the
// order they were first recorded.
func (f *File) Dependents() []string {
	out := make([]string, len(f.dependents))
	copy(out, f.dependents)
	return out
}

// Cache maps cleaned paths to file records.
type Cache struct {
	fs       afero.Fs
	files    map[string]*File
	textExts map[string]bool
	now      func() time.Time
	logger   logging.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTextExtensions sets which extensions mark text documents. The default
// is ".html".
func WithTextExtensions(exts ...string) Option {
	return func(c *Cache) {
		c.textExts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			c.textExts[strings.ToLower(ext)] = true
		}
	}
}

// WithClock replaces time.Now for load timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) { c.logger = logger.WithComponent("cache") }
}

// New creates an empty cache reading from fs.
func New(fs afero.Fs, opts ...Option) *Cache {
	c := &Cache{
		fs:       fs,
		files:    make(map[string]*File),
		textExts: map[string]bool{".html": true},
		now:      time.Now,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fs returns the file system the cache reads from.
func (c *Cache) Fs() afero.Fs {
	return c.fs
}

// IsTextPath reports whether path would be loaded as a text document.
func (c *Cache) IsTextPath(path string) bool {
	return c.textExts[strings.ToLower(filepath.Ext(path))]
}

// Get returns the record for path, loading it on first use. An existing
// record is returned as is; Get never re-reads storage.
func (c *Cache) Get(path string) (*File, error) {
	key := filepath.Clean(path)
	if f, ok := c.files[key]; ok {
		return f, nil
	}

	f, err := c.load(key)
	if err != nil {
		return nil, err
	}
	c.files[key] = f
	return f, nil
}

// Refresh reloads path unconditionally. Content, headers and timestamp are
// replaced; the dependents recorded so far are kept. When the reload fails
// the previous record stays in place.
func (c *Cache) Refresh(path string) (*File, error) {
	key := filepath.Clean(path)

	fresh, err := c.load(key)
	if err != nil {
		return nil, err
	}

	if old, ok := c.files[key]; ok {
		old.Content = fresh.Content
		old.IsText = fresh.IsText
		old.Headers = fresh.Headers
		old.Updated = fresh.Updated
		return old, nil
	}

	c.files[key] = fresh
	return fresh, nil
}

// RecordDependency notes that dependent read path while rendering. The
// record for path is loaded if needed. Recording the same pair twice is a
// no-op.
func (c *Cache) RecordDependency(path, dependent string) error {
	f, err := c.Get(path)
	if err != nil {
		return err
	}

	dependent = filepath.Clean(dependent)
	if _, ok := f.dependentSet[dependent]; ok {
		return nil
	}
	f.dependentSet[dependent] = struct{}{}
	f.dependents = append(f.dependents, dependent)
	return nil
}

// Has reports whether path has a record, without loading it.
func (c *Cache) Has(path string) bool {
	_, ok := c.files[filepath.Clean(path)]
	return ok
}

// Dependents returns the files recorded against path, or nil when path has
// no record.
func (c *Cache) Dependents(path string) []string {
	f, ok := c.files[filepath.Clean(path)]
	if !ok {
		return nil
	}
	return f.Dependents()
}

// Paths returns every cached path in lexical order.
func (c *Cache) Paths() []string {
	paths := make([]string, 0, len(c.files))
	for p := range c.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.files)
}

func (c *Cache) load(path string) (*File, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		code := errors.ErrCodeReadFailed
		if os.IsNotExist(err) {
			code = errors.ErrCodeFileNotFound
		}
		return nil, errors.NewIOError(code, path, err)
	}

	f := &File{
		Path:         path,
		Headers:      make(map[string]string),
		Updated:      c.now(),
		dependentSet: make(map[string]struct{}),
	}

	if c.IsTextPath(path) {
		text := string(data)
		headers, end := SplitHeaders(text)
		f.IsText = true
		f.Headers = headers
		f.Content = []byte(text[end:])
	} else {
		f.Content = data
	}

	c.logger.Debug(context.Background(), "Loaded file",
		"path", path,
		"text", f.IsText,
		"headers", len(f.Headers),
		"bytes", len(f.Content))

	return f, nil
}
