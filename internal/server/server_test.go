package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/smol/internal/errors"
)

const page = `<!DOCTYPE html><html><head><title>Home</title></head><body><h1>Hello</h1></body></html>`

func newTestServer(t *testing.T, liveReload bool) (*Server, *httptest.Server) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "_site/index.html", []byte(page), 0o644))
	require.NoError(t, afero.WriteFile(fs, "_site/posts/a.html", []byte(page), 0o644))
	require.NoError(t, afero.WriteFile(fs, "_site/style.css", []byte("body{}"), 0o644))

	s := New(fs, Options{Host: "localhost", Port: 8000, Root: "_site", LiveReload: liveReload})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServeInjectsReloadScript(t *testing.T) {
	_, ts := newTestServer(t, true)

	status, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<h1>Hello</h1>")
	assert.Contains(t, body, "data-smol-reload")
	assert.Contains(t, body, ReloadPath)
	assert.Less(t, strings.Index(body, "<h1>"), strings.Index(body, "data-smol-reload"))
	assert.NotContains(t, body, "data-smol-overlay")

	status, body = get(t, ts.URL+"/posts/a.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "data-smol-reload")
}

func TestServeWithoutLiveReload(t *testing.T) {
	_, ts := newTestServer(t, false)

	status, body := get(t, ts.URL+"/index.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, page, body)

	resp, err := http.Get(ts.URL + ReloadPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeNonHTMLUnchanged(t *testing.T) {
	_, ts := newTestServer(t, true)

	status, body := get(t, ts.URL+"/style.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body{}", body)
}

func TestServeNotFound(t *testing.T) {
	_, ts := newTestServer(t, true)

	status, _ := get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, ts.URL+"/../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServeDirectoryRedirect(t *testing.T) {
	_, ts := newTestServer(t, true)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/posts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/posts/", resp.Header.Get("Location"))

	// posts/ has no index.html
	status, _ := get(t, ts.URL+"/posts/")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServeRejectsPost(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp, err := http.Post(ts.URL+"/", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestErrorOverlay(t *testing.T) {
	s, ts := newTestServer(t, true)

	s.NotifyRebuild([]string{"index.html"}, []errors.BuildError{{
		File:    "index.html",
		Line:    3,
		Column:  7,
		Kind:    errors.KindLookup,
		Message: "undefined variable <title>",
	}})

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, body, "data-smol-overlay")
	assert.Contains(t, body, "index.html:3:7")
	assert.Contains(t, body, "undefined variable &lt;title&gt;")
	assert.Len(t, s.BuildErrors(), 1)

	s.NotifyRebuild([]string{"index.html"}, nil)

	_, body = get(t, ts.URL+"/")
	assert.NotContains(t, body, "data-smol-overlay")
	assert.Empty(t, s.BuildErrors())
}

func TestHealth(t *testing.T) {
	s, ts := newTestServer(t, true)
	s.NotifyRebuild(nil, []errors.BuildError{{File: "a.html", Message: "boom"}})

	status, body := get(t, ts.URL+HealthPath)
	require.Equal(t, http.StatusOK, status)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["clients"])
	assert.EqualValues(t, 1, health["errors"])
}

func TestWebSocketReceivesReload(t *testing.T) {
	s, ts := newTestServer(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.runWebSocketHub(ctx)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		s.clientsMutex.RLock()
		defer s.clientsMutex.RUnlock()
		return len(s.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.NotifyRebuild([]string{"index.html"}, nil)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"index.html"}, msg.Paths)

	s.NotifyRebuild([]string{"a.html"}, []errors.BuildError{{File: "a.html", Message: "boom"}})

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, []string{"a.html: boom"}, msg.Errors)
}

func TestShutdownDropsClients(t *testing.T) {
	s, ts := newTestServer(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		s.clientsMutex.RLock()
		defer s.clientsMutex.RUnlock()
		return len(s.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	s.clientsMutex.RLock()
	assert.Empty(t, s.clients)
	s.clientsMutex.RUnlock()

	_, _, err = conn.Read(ctx)
	assert.Error(t, err)
}

func TestInject(t *testing.T) {
	out, err := Inject(context.Background(), []byte("<p>bare fragment</p>"), reloadScript("/ws"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<body><p>bare fragment</p><script data-smol-reload")
}

func TestReloadScriptEscapesPath(t *testing.T) {
	var b strings.Builder
	require.NoError(t, reloadScript(`/ws"</script>`).Render(context.Background(), &b))

	assert.Contains(t, b.String(), `location.host + "/ws\"\u003c/script\u003e";`)
	assert.Equal(t, 1, strings.Count(b.String(), "</script>"))
}

func TestAddr(t *testing.T) {
	s := New(afero.NewMemMapFs(), Options{Host: "127.0.0.1", Port: 4000})
	assert.Equal(t, "127.0.0.1:4000", s.Addr())
}
