package game

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/q-controller/guessit/src/pkg/frontend"
	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/q-controller/guessit/src/pkg/items/blob"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const maxUploadSize = 10 << 20

//go:embed templates/*.html
var templatesFS embed.FS

var pages = []string{"home.html", "images.html", "game.html"}

// Events receives upload notifications and streams them to websocket
// clients.
type Events interface {
	http.Handler
	ItemAdded(id items.Identifier, secretCount int) error
}

// Objects serves images kept by the local blob backend.
type Objects interface {
	Open(name string) (io.ReadCloser, *blob.ObjectMetadata, error)
}

type Server struct {
	store     items.Store
	sessions  *Sessions
	events    Events
	objects   Objects
	blobRoute string
	templates map[string]*template.Template
}

type Option func(*Server)

func WithEvents(events Events) Option {
	return func(s *Server) {
		s.events = events
	}
}

// WithObjects serves objects under urlPrefix, the prefix the backend puts in
// front of the names in its locators.
func WithObjects(objects Objects, urlPrefix string) Option {
	return func(s *Server) {
		s.objects = objects
		s.blobRoute = strings.TrimSuffix(urlPrefix, "/") + "/{name}"
	}
}

func WithSessions(sessions *Sessions) Option {
	return func(s *Server) {
		s.sessions = sessions
	}
}

func CreateServer(store items.Store, opts ...Option) (*Server, error) {
	s := &Server{
		store:     store,
		sessions:  NewSessions("guessit_session"),
		blobRoute: "/blobs/{name}",
		templates: make(map[string]*template.Template, len(pages)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, page := range pages {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		s.templates[page] = tmpl
	}
	return s, nil
}

// Handler returns the HTTP surface of the game.
func (s *Server) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux(runtime.WithDisablePathLengthFallback())

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/images", s.Images},
		{http.MethodPost, "/upload_image", s.UploadImage},
		{http.MethodGet, "/game", s.Game},
		{http.MethodGet, "/image", s.Image},
		{http.MethodPost, "/make_a_guess", s.MakeAGuess},
		{http.MethodGet, "/v1/secrets", s.Secrets},
		{http.MethodGet, "/v1/items/{itemId}", s.Item},
		{http.MethodGet, s.blobRoute, s.Blob},
		{http.MethodGet, "/openapi.yaml", s.OpenAPI},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", route.method, route.pattern, err)
		}
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		s.Home(w, r, nil)
	})
	root.Handle("GET /static/", frontend.Handler("/static/"))
	root.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	if s.events != nil {
		root.Handle("/v1/events", s.events)
	}
	root.Handle("/", mux)
	return root, nil
}

type page struct {
	Flashes []Flash
	ItemID  items.Identifier
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates[name].ExecuteTemplate(w, "layout", data); err != nil {
		slog.WarnContext(r.Context(), "Failed to render page", "page", name, "error", err)
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// servedContentType passes raster image types through and downgrades
// everything else, SVG included, to an opaque download.
func servedContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") || mediaType == "image/svg+xml" {
		return "application/octet-stream"
	}
	return mediaType
}

func setContentHeaders(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", servedContentType(contentType))
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, items.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, items.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, items.ErrInvalidItem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	slog.WarnContext(r.Context(), msg, "error", err, "status", status, "path", r.URL.Path)
	http.Error(w, msg+": "+err.Error(), status)
}
