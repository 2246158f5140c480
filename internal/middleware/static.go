package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const crestSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 40l50 25v40c0 30-20 55-50 65-30-10-50-35-50-65V65z" fill="#2d5a27"/><text x="100" y="180" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">VANDEHOEKEN</text></svg>`

// StaticFileServer serves listing images, falling back to the national
// crest placeholder when a file is missing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(crestSVG))
	})
}
