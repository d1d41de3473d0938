package site

import (
	"context"
	"path/filepath"
	"time"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/watcher"
)

// Rebuild refreshes path in the cache, builds it, and then does the same
// for every file recorded as depending on it, transitively. Each path is
// built at most once per call, so dependency cycles terminate. Failures are
// recorded per file and the cascade carries on; the returned error
// summarises them. The returned paths are in rebuild order.
func (b *Builder) Rebuild(ctx context.Context, path string) ([]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.rebuild(ctx, filepath.Clean(path))
}

func (b *Builder) rebuild(ctx context.Context, path string) ([]string, error) {
	failures := errors.NewErrorCollector()

	var rebuilt []string
	visited := make(map[string]bool)
	queue := []string{path}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}

		rebuilt = append(rebuilt, current)
		b.errors.ClearFile(current)
		if _, err := b.cache.Refresh(current); err != nil {
			b.fail(ctx, current, err)
			failures.AddError(current, err)
			continue
		}
		if _, err := b.buildPage(Page{Source: current, Dest: b.destFor(current)}); err != nil {
			b.fail(ctx, current, err)
			failures.AddError(current, err)
		}

		for _, dep := range b.cache.Dependents(current) {
			if !visited[dep] {
				queue = append(queue, dep)
			}
		}
	}

	b.logger.Info(ctx, "Rebuilt files", "trigger", path, "count", len(rebuilt))
	return rebuilt, failures.Err()
}

// HandleEvent applies one change notification. Only modified events for
// paths the cache already knows start a rebuild. A path accepted less than
// the debounce window ago is not rebuilt now; instead one rebuild of it is
// requeued for when the window closes, so a burst of writes always ends
// with a build of the final content. It returns the rebuilt paths, which
// is empty when the event was ignored or deferred.
func (b *Builder) HandleEvent(ctx context.Context, event watcher.ChangeEvent) ([]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	path := filepath.Clean(event.Path)
	if event.Kind != watcher.EventModified || !b.cache.Has(path) {
		b.logger.Debug(ctx, "Ignoring change", "path", path, "kind", event.Kind.String())
		return nil, nil
	}
	if wait := b.accept(path); wait > 0 {
		b.logger.Debug(ctx, "Debounced change", "path", path, "retry_in", wait.String())
		b.deferChange(watcher.ChangeEvent{Kind: event.Kind, Path: path, Time: event.Time}, wait)
		return nil, nil
	}
	if timer, ok := b.pending[path]; ok {
		timer.Stop()
		delete(b.pending, path)
	}

	return b.rebuild(ctx, path)
}

// SetRequeue sets where a deferred change is delivered once its debounce
// window closes. Watchers pass their own queue so the retry runs on the
// handler goroutine; nil makes the builder handle it directly.
func (b *Builder) SetRequeue(requeue func(watcher.ChangeEvent)) {
	if requeue == nil {
		requeue = func(event watcher.ChangeEvent) {
			_, _ = b.HandleEvent(context.Background(), event)
		}
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.requeue = requeue
}

// CancelPending stops every deferred change that has not fired yet.
func (b *Builder) CancelPending() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for path, timer := range b.pending {
		timer.Stop()
		delete(b.pending, path)
	}
}

// accept records path as accepted now and returns zero, unless it was
// accepted within the debounce window; then it returns the time left in
// that window.
func (b *Builder) accept(path string) time.Duration {
	now := b.now()
	if last, ok := b.lastAccepted[path]; ok {
		if left := b.opts.Debounce - now.Sub(last); left > 0 {
			return left
		}
	}
	b.lastAccepted[path] = now
	return 0
}

// deferChange schedules event for redelivery after wait. At most one retry
// per path is pending; further events inside the window fold into it.
// Callers hold the mutex.
func (b *Builder) deferChange(event watcher.ChangeEvent, wait time.Duration) {
	if _, ok := b.pending[event.Path]; ok {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		b.mutex.Lock()
		if b.pending[event.Path] != timer {
			// cancelled, or superseded by a rebuild, after firing
			b.mutex.Unlock()
			return
		}
		delete(b.pending, event.Path)
		requeue := b.requeue
		b.mutex.Unlock()

		requeue(event)
	})
	b.pending[event.Path] = timer
}
