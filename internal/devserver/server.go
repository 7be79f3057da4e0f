package devserver

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/biblecomputer/bible/internal/bundle"
	"github.com/biblecomputer/bible/internal/metrics"
)

// Server serves the published bundle during development with the reload
// script injected into HTML pages.
type Server struct {
	Dist     string
	Hub      *ReloadHub
	Registry *prom.Registry // nil disables /metrics
}

// Handler builds the dev mux: static files with HTML injection, the SSE
// reload endpoint, the client script, and optionally /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/livereload", s.Hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(reloadScript))
	})
	if s.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.Registry))
	}
	mux.HandleFunc("/", s.serveFile)
	return mux
}

// serveFile serves from the dist tree. Unknown paths fall back to the
// client-side router page, matching how the published site behaves behind a
// static host. HTML responses get the reload script appended.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	if clean == "/" {
		clean = "/" + bundle.EntryPage
	}
	target := filepath.Join(s.Dist, filepath.FromSlash(clean))

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		// Route-like path without an extension: hand it to the client
		// router via the fallback page.
		if path.Ext(clean) == "" || path.Ext(clean) == ".html" {
			s.serveHTML(w, filepath.Join(s.Dist, bundle.FallbackPage), http.StatusOK)
			return
		}
		http.NotFound(w, r)
		return
	}

	if strings.HasSuffix(target, ".html") {
		s.serveHTML(w, target, http.StatusOK)
		return
	}
	http.ServeFile(w, r, target)
}

func (s *Server) serveHTML(w http.ResponseWriter, file string, status int) {
	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "page not available", http.StatusNotFound)
		return
	}
	data = injectReloadTag(data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// injectReloadTag inserts the script tag before </body>, or appends it when
// the page has no closing body tag.
func injectReloadTag(page []byte) []byte {
	tag := []byte(`<script async src="/livereload.js"></script>`)
	if i := bytes.LastIndex(page, []byte("</body>")); i >= 0 {
		out := make([]byte, 0, len(page)+len(tag))
		out = append(out, page[:i]...)
		out = append(out, tag...)
		out = append(out, page[i:]...)
		return out
	}
	return append(page, tag...)
}

// newHTTPServer wires the handler with timeouts suitable for long-lived SSE
// connections.
func newHTTPServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", port),
		Handler:     h,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 300 * time.Second,
	}
}
