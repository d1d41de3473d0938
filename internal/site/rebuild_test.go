package site

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/smol/internal/watcher"
)

func TestRebuildCascadesToDependents(t *testing.T) {
	fs := newTestFs(t, blogFiles())
	b := newBlogBuilder(t, fs)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, p("site/posts/a.html"),
		[]byte("<!-- title: A2 -->\n<p>changed</p>"), 0o644))

	rebuilt, err := b.Rebuild(context.Background(), p("site/posts/a.html"))
	require.NoError(t, err)

	// the index depends on a.html; rebuilding it does not loop back to a.html
	assert.Equal(t, []string{p("site/posts/a.html"), p("site/index.html")}, rebuilt)
	assert.Equal(t, "<p>changed</p>", readFile(t, fs, "site/_site/posts/a.html"))
	assert.Equal(t,
		`<h1>My Blog</h1><a href="posts/a.html">A2</a><a href="posts/b.html">B</a>`,
		readFile(t, fs, "site/_site/index.html"))
}

func TestRebuildWithoutDependents(t *testing.T) {
	fs := newTestFs(t, blogFiles())
	b := newBlogBuilder(t, fs)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	rebuilt, err := b.Rebuild(context.Background(), p("site/index.html"))
	require.NoError(t, err)
	assert.Equal(t, []string{p("site/index.html")}, rebuilt)
}

func TestRebuildTerminatesOnCycles(t *testing.T) {
	// each page lists its own directory, so both depend on each other and
	// on themselves
	fs := newTestFs(t, map[string]string{
		"site/a.html": "{% for f in list_files(\".\") %}{{ f.url }};{% endfor %}",
		"site/b.html": "{% for f in list_files(\".\") %}{{ f.url }};{% endfor %}",
	})
	b := New(fs, Options{Source: "site", Out: "out"})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	rebuilt, err := b.Rebuild(context.Background(), p("site/a.html"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p("site/a.html"), p("site/b.html")}, rebuilt)
	assert.Equal(t, "a.html;b.html;", readFile(t, fs, "out/a.html"))
}

func TestRebuildContinuesPastFailures(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"site/index.html":   "{% for f in list_files(\"posts\") %}{{ f.title }}{% endfor %}",
		"site/posts/a.html": "<!-- title: A -->a",
	})
	b := New(fs, Options{Source: "site", Out: "out"})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, p("site/posts/a.html"), []byte("<!-- title: A -->{{ nope }}"), 0o644))

	rebuilt, err := b.Rebuild(context.Background(), p("site/posts/a.html"))
	require.Error(t, err)
	assert.Equal(t, []string{p("site/posts/a.html"), p("site/index.html")}, rebuilt)
	assert.Equal(t, "A", readFile(t, fs, "out/index.html"))

	require.Len(t, b.Errors(), 1)
	assert.Equal(t, p("site/posts/a.html"), b.Errors()[0].File)

	// fixing the file clears its recorded failure
	require.NoError(t, afero.WriteFile(fs, p("site/posts/a.html"), []byte("<!-- title: A -->ok"), 0o644))
	_, err = b.Rebuild(context.Background(), p("site/posts/a.html"))
	require.NoError(t, err)
	assert.Empty(t, b.Errors())
}

func TestHandleEventDebounces(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fs := newTestFs(t, blogFiles())
	b := newBlogBuilder(t, fs, WithClock(func() time.Time { return now }))
	b.SetRequeue(func(watcher.ChangeEvent) {})
	t.Cleanup(b.CancelPending)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	event := watcher.ChangeEvent{Kind: watcher.EventModified, Path: p("site/posts/b.html")}

	rebuilt, err := b.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, []string{p("site/posts/b.html"), p("site/index.html")}, rebuilt)

	now = now.Add(300 * time.Millisecond)
	rebuilt, err = b.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, rebuilt, "repeat inside the window should be dropped")

	// another path has its own window
	rebuilt, err = b.HandleEvent(context.Background(),
		watcher.ChangeEvent{Kind: watcher.EventModified, Path: p("site/posts/a.html")})
	require.NoError(t, err)
	assert.NotEmpty(t, rebuilt)

	now = now.Add(time.Second)
	rebuilt, err = b.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, rebuilt)
}

func TestHandleEventWithoutDebounceWindow(t *testing.T) {
	fs := newTestFs(t, map[string]string{"site/a.html": "a"})
	b := New(fs, Options{Source: "site", Out: "out"})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	event := watcher.ChangeEvent{Kind: watcher.EventModified, Path: p("site/a.html")}
	for i := 0; i < 3; i++ {
		rebuilt, err := b.HandleEvent(context.Background(), event)
		require.NoError(t, err)
		assert.Len(t, rebuilt, 1)
	}
}

func TestHandleEventRebuildsFinalContentAfterBurst(t *testing.T) {
	fs := newTestFs(t, map[string]string{"site/a.html": "v1"})
	b := New(fs, Options{Source: "site", Out: "out", Debounce: 100 * time.Millisecond})
	t.Cleanup(b.CancelPending)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	event := watcher.ChangeEvent{Kind: watcher.EventModified, Path: p("site/a.html")}

	// an editor truncates, then writes
	require.NoError(t, afero.WriteFile(fs, p("site/a.html"), []byte(""), 0o644))
	rebuilt, err := b.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Len(t, rebuilt, 1)
	assert.Equal(t, "", readFile(t, fs, "out/a.html"))

	require.NoError(t, afero.WriteFile(fs, p("site/a.html"), []byte("v2"), 0o644))
	rebuilt, err = b.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, rebuilt)

	require.Eventually(t, func() bool {
		data, err := afero.ReadFile(fs, p("out/a.html"))
		return err == nil && string(data) == "v2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleEventRequeuesOncePerWindow(t *testing.T) {
	fs := newTestFs(t, map[string]string{"site/a.html": "a"})
	b := New(fs, Options{Source: "site", Out: "out", Debounce: 50 * time.Millisecond})
	t.Cleanup(b.CancelPending)

	requeued := make(chan watcher.ChangeEvent, 10)
	b.SetRequeue(func(event watcher.ChangeEvent) { requeued <- event })

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	event := watcher.ChangeEvent{Kind: watcher.EventModified, Path: "site/./a.html"}
	for i := 0; i < 4; i++ {
		_, err := b.HandleEvent(context.Background(), event)
		require.NoError(t, err)
	}

	select {
	case retry := <-requeued:
		assert.Equal(t, p("site/a.html"), retry.Path)
		assert.Equal(t, watcher.EventModified, retry.Kind)

		rebuilt, err := b.HandleEvent(context.Background(), retry)
		require.NoError(t, err)
		assert.Equal(t, []string{p("site/a.html")}, rebuilt)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred change was not requeued")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, requeued, "a burst is retried once")
}

func TestCancelPendingDropsDeferredChanges(t *testing.T) {
	fs := newTestFs(t, map[string]string{"site/a.html": "a"})
	b := New(fs, Options{Source: "site", Out: "out", Debounce: 50 * time.Millisecond})

	requeued := make(chan watcher.ChangeEvent, 1)
	b.SetRequeue(func(event watcher.ChangeEvent) { requeued <- event })

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	event := watcher.ChangeEvent{Kind: watcher.EventModified, Path: p("site/a.html")}
	for i := 0; i < 2; i++ {
		_, err := b.HandleEvent(context.Background(), event)
		require.NoError(t, err)
	}
	b.CancelPending()

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, requeued)
}
