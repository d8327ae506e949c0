package frontend

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static/*
var webFS embed.FS

// Handler serves the embedded stylesheets and images mounted under basepath.
func Handler(basepath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, basepath)
		path := "static/" + name
		if info, err := fs.Stat(webFS, path); err != nil || info.IsDir() || name == "" {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, webFS, path)
	}
}
