package api

import (
	"net/http"
	"path"
	"strings"
)

// newStaticHandler serves files from dir. Extensions registered by
// integrations get their Content-Type set before the file server sniffs one.
func newStaticHandler(dir string, contentTypes map[string]string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "static files are read-only")
			return
		}
		if contentType, ok := contentTypes[strings.ToLower(path.Ext(r.URL.Path))]; ok {
			w.Header().Set("Content-Type", contentType)
		}
		files.ServeHTTP(w, r)
	})
}
