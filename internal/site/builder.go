// Package site builds a smol site: it discovers pages, copies static assets,
// renders text documents through the evaluator and, while watching, rebuilds
// changed files together with every file that depends on them.
package site

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/smol/internal/cache"
	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/lang"
	"github.com/conneroisu/smol/internal/logging"
	"github.com/conneroisu/smol/internal/render"
	"github.com/conneroisu/smol/internal/watcher"
)

// Options are the build settings taken from configuration.
type Options struct {
	Source    string
	Out       string
	StaticDir string
	Clean     bool
	// TextExtensions mark the files rendered as templates.
	TextExtensions []string
	Params         lang.Env
	Debounce       time.Duration
}

// Summary reports the outcome of a full build.
type Summary struct {
	Rendered int
	Copied   int
	Static   int
	Failed   int
	Duration time.Duration
}

// Builder owns the cache and evaluator of one build or watch session. All
// cache access goes through its mutex.
type Builder struct {
	fs     afero.Fs
	opts   Options
	cache  *cache.Cache
	eval   *render.Evaluator
	errors *errors.ErrorCollector
	logger logging.Logger
	now    func() time.Time

	mutex        sync.Mutex
	lastAccepted map[string]time.Time
	pending      map[string]*time.Timer
	requeue      func(watcher.ChangeEvent)
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) { b.logger = logger.WithComponent("site") }
}

// WithClock replaces time.Now for the debounce gate and cache timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a builder over fs.
func New(fs afero.Fs, opts Options, options ...Option) *Builder {
	opts.Source = filepath.Clean(opts.Source)
	opts.Out = filepath.Clean(opts.Out)
	if opts.StaticDir != "" {
		opts.StaticDir = filepath.Clean(opts.StaticDir)
	}
	if len(opts.TextExtensions) == 0 {
		opts.TextExtensions = []string{".html"}
	}
	if opts.Params == nil {
		opts.Params = lang.Env{}
	}

	b := &Builder{
		fs:           fs,
		opts:         opts,
		errors:       errors.NewErrorCollector(),
		logger:       logging.Discard(),
		now:          time.Now,
		lastAccepted: make(map[string]time.Time),
		pending:      make(map[string]*time.Timer),
	}
	for _, opt := range options {
		opt(b)
	}
	b.SetRequeue(nil)

	b.cache = cache.New(fs,
		cache.WithTextExtensions(opts.TextExtensions...),
		cache.WithClock(b.now),
		cache.WithLogger(b.logger))
	b.eval = render.NewEvaluator(b.cache,
		render.WithRoot(opts.Source),
		render.WithLogger(b.logger))

	return b
}

// Cache returns the session cache.
func (b *Builder) Cache() *cache.Cache {
	return b.cache
}

// Errors returns the failures of the most recent build or rebuild that
// have not been cleared by a later successful build of the same file.
func (b *Builder) Errors() []errors.BuildError {
	return b.errors.GetErrors()
}

// Options returns the builder's settings.
func (b *Builder) Options() Options {
	return b.opts
}

// Build runs a full build: optionally clears the output tree, copies the
// static tree, then builds every page. A failing page is recorded and does
// not stop the others; the returned error summarises the failures.
func (b *Builder) Build(ctx context.Context) (Summary, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	perf := logging.StartOperation(b.logger, "build")
	start := b.now()
	b.errors.Clear()

	var summary Summary

	if b.opts.Clean {
		if err := b.fs.RemoveAll(b.opts.Out); err != nil {
			return summary, errors.NewIOError(errors.ErrCodeWriteFailed, b.opts.Out, err)
		}
	}

	copied, err := b.copyStatic()
	if err != nil {
		return summary, err
	}
	summary.Static = copied

	pages, err := b.Pages()
	if err != nil {
		return summary, err
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if _, err := b.cache.Refresh(page.Source); err != nil {
			b.fail(ctx, page.Source, err)
			summary.Failed++
			continue
		}
		rendered, err := b.buildPage(page)
		if err != nil {
			b.fail(ctx, page.Source, err)
			summary.Failed++
			continue
		}
		if rendered {
			summary.Rendered++
		} else {
			summary.Copied++
		}
	}

	summary.Duration = b.now().Sub(start)
	perf.End(ctx,
		"rendered", summary.Rendered,
		"copied", summary.Copied,
		"static", summary.Static,
		"failed", summary.Failed)

	return summary, b.errors.Err()
}

// BuildPage builds one source file to its output path, loading it through
// the cache.
func (b *Builder) BuildPage(ctx context.Context, source string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	source = filepath.Clean(source)
	b.errors.ClearFile(source)
	if _, err := b.buildPage(Page{Source: source, Dest: b.destFor(source)}); err != nil {
		b.fail(ctx, source, err)
		return err
	}
	return nil
}

// buildPage renders a text document or copies any other file. It reports
// whether the page was rendered.
func (b *Builder) buildPage(page Page) (bool, error) {
	f, err := b.cache.Get(page.Source)
	if err != nil {
		return false, err
	}

	if !f.IsText {
		return false, b.write(page.Dest, f.Content)
	}

	doc, err := lang.Parse(f.Text())
	if err != nil {
		return false, errors.Locate(err, page.Source)
	}

	out, err := b.eval.Render(doc, page.Source, b.envFor(f))
	if err != nil {
		return false, errors.Locate(err, page.Source)
	}

	return true, b.write(page.Dest, []byte(out))
}

// envFor builds the environment a document renders in: the configured
// params overridden by the document's own headers.
func (b *Builder) envFor(f *cache.File) lang.Env {
	env := b.opts.Params.Clone()
	for k, v := range f.Headers {
		env[k] = lang.Str(v)
	}
	return env
}

func (b *Builder) write(dest string, data []byte) error {
	if err := b.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, dest, err)
	}
	if err := afero.WriteFile(b.fs, dest, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, dest, err)
	}
	return nil
}

// copyStatic copies the static tree into the output root. A missing static
// tree copies nothing.
func (b *Builder) copyStatic() (int, error) {
	if b.opts.StaticDir == "" {
		return 0, nil
	}
	if exists, err := afero.DirExists(b.fs, b.opts.StaticDir); err != nil || !exists {
		return 0, nil
	}

	copied := 0
	err := afero.Walk(b.fs, b.opts.StaticDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.NewIOError(errors.ErrCodeReadFailed, path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := afero.ReadFile(b.fs, path)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeReadFailed, path, err)
		}
		if err := b.write(b.destFor(path), data); err != nil {
			return err
		}
		copied++
		return nil
	})

	return copied, err
}

func (b *Builder) fail(ctx context.Context, source string, err error) {
	b.errors.AddError(source, err)
	b.logger.Error(ctx, err, "Page failed to build", "source", source)
}
