package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/spf13/afero"
)

// handleFile serves a file from the output tree. Directories resolve to
// their index.html. HTML responses carry the reload script and, while the
// last rebuild failed, the error overlay.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	info, err := s.files.Stat(name)
	if err == nil && info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		info, err = s.files.Stat(name)
	}
	if err != nil || info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			s.logger.Warn(r.Context(), err, "Cannot stat file", "path", name)
		}
		http.NotFound(w, r)
		return
	}

	data, err := afero.ReadFile(s.files, name)
	if err != nil {
		s.logger.Error(r.Context(), err, "Cannot read file", "path", name)
		http.Error(w, "cannot read file", http.StatusInternalServerError)
		return
	}

	modTime := info.ModTime()
	if isHTML(name) {
		// The injected overlay changes without the file changing.
		modTime = time.Time{}
		if components := s.injected(); len(components) > 0 {
			injected, err := Inject(r.Context(), data, components...)
			if err != nil {
				s.logger.Warn(r.Context(), err, "Cannot inject into page, serving it unchanged", "path", name)
			} else {
				data = injected
			}
		}
		w.Header().Set("Cache-Control", "no-store")
	}

	http.ServeContent(w, r, name, modTime, bytes.NewReader(data))
}

// injected returns the components every HTML response gets.
func (s *Server) injected() []templ.Component {
	var components []templ.Component
	if failures := s.BuildErrors(); len(failures) > 0 {
		components = append(components, errorOverlay(failures))
	}
	if s.opts.LiveReload {
		components = append(components, reloadScript(ReloadPath))
	}
	return components
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}
