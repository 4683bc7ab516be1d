package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

const (
	cacheRevalidate = "public, max-age=0, must-revalidate"
	cacheImmutable  = "public, max-age=31536000, immutable"

	entryDocument = "index.html"
)

var (
	revalidateExts = map[string]bool{".js": true, ".css": true, ".html": true, ".json": true}
	immutableExts  = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true,
		".webp": true, ".avif": true, ".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	}
)

// cacheControlFor returns the Cache-Control value for a file name, or "" for
// types with no policy.
func cacheControlFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case revalidateExts[ext]:
		return cacheRevalidate
	case immutableExts[ext]:
		return cacheImmutable
	}
	return ""
}

// staticFiles serves the frontend build output
type staticFiles struct {
	root string
}

// resolve maps a URL path to a regular file under root: the exact file, the
// directory's index.html, or path + ".html" for extensionless paths.
// Dotfiles are never served.
func (s staticFiles) resolve(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	for _, segment := range strings.Split(clean, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", false
		}
	}

	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if info, err := os.Stat(full); err == nil {
		if info.Mode().IsRegular() {
			return full, true
		}
		if info.IsDir() {
			index := filepath.Join(full, entryDocument)
			if isRegular(index) {
				return index, true
			}
		}
		return "", false
	}

	if clean != "/" && path.Ext(clean) == "" && isRegular(full+".html") {
		return full + ".html", true
	}
	return "", false
}

func (s staticFiles) match(r *http.Request, _ *mux.RouteMatch) bool {
	_, ok := s.resolve(r.URL.Path)
	return ok
}

func (s staticFiles) serve(w http.ResponseWriter, r *http.Request) error {
	name, ok := s.resolve(r.URL.Path)
	if !ok {
		return httpError(http.StatusNotFound, "Not Found", nil)
	}
	return serveFile(w, r, name)
}

// FallbackHandler serves the entry document for client-side routes
func (a *App) FallbackHandler(w http.ResponseWriter, r *http.Request) error {
	index := filepath.Join(a.static.root, entryDocument)
	if !isRegular(index) {
		return httpError(http.StatusInternalServerError,
			"Build output missing. Run the frontend build before starting the server.",
			os.ErrNotExist)
	}
	return serveFile(w, r, index)
}

func serveFile(w http.ResponseWriter, r *http.Request, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if policy := cacheControlFor(name); policy != "" {
		w.Header().Set("Cache-Control", policy)
	}
	http.ServeContent(w, r, filepath.Base(name), info.ModTime(), f)
	return nil
}

func isRegular(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}
