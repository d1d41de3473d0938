package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/smol/internal/errors"
)

// reloadScript connects to the reload socket and reloads the page on every
// update message, reconnecting after the server restarts.
func reloadScript(path string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		url, err := templ.JSONString(path)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, `<script data-smol-reload>
(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + %s;
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function () { location.reload(); };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`, url)
		return err
	})
}

// errorOverlay lists build failures on top of the page.
func errorOverlay(failures []errors.BuildError) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(failures) == 0 {
			return nil
		}

		if _, err := io.WriteString(w, `<div data-smol-overlay style="position:fixed;inset:0;z-index:2147483647;`+
			`overflow:auto;background:rgba(24,24,27,.95);color:#fecaca;font:14px/1.5 monospace;padding:2rem">`); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<h2 style="color:#f87171;margin-top:0">Build failed (%d)</h2><ul>`, len(failures)); err != nil {
			return err
		}
		for i := range failures {
			f := &failures[i]
			if _, err := fmt.Fprintf(w, `<li><strong>%s</strong> <em>%s</em><pre style="white-space:pre-wrap">%s</pre></li>`,
				templ.EscapeString(location(f)),
				templ.EscapeString(string(f.Kind)),
				templ.EscapeString(f.Message)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul></div>`)
		return err
	})
}

func location(f *errors.BuildError) string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
	}
	return f.File
}
