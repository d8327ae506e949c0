package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	oapiruntime "github.com/oapi-codegen/runtime"
	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/q-controller/guessit/src/pkg/items/blob"
)

const noImagesMessage = "No images uploaded yet! Please upload at least one image to start guessing"

func (s *Server) Home(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.render(w, r, "home.html", page{Flashes: s.pendingFlashes(r)})
}

func (s *Server) Images(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.render(w, r, "images.html", page{Flashes: s.pendingFlashes(r)})
}

// pendingFlashes reads flashes without starting a session.
func (s *Server) pendingFlashes(r *http.Request) []Flash {
	if sid, ok := s.sessions.Lookup(r); ok {
		return s.sessions.Flashes(sid)
	}
	return nil
}

func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if parseErr := r.ParseMultipartForm(maxUploadSize); parseErr != nil {
		http.Error(w, fmt.Sprintf("failed to parse form: %s", parseErr.Error()), http.StatusBadRequest)
		return
	}
	sid := s.sessions.ID(w, r)

	secretWord := r.FormValue("secretWord")
	if secretWord == "" {
		s.sessions.Flash(sid, Flash{Text: "No secret word added! Please try uploading again"})
		s.redirect(w, r, "/images")
		return
	}

	file, header, fileErr := r.FormFile("image")
	if fileErr != nil || header.Filename == "" {
		s.sessions.Flash(sid, Flash{Text: "No file selected! Please try uploading again"})
		s.redirect(w, r, "/images")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close file", "error", err)
		}
	}()

	content, readErr := io.ReadAll(file)
	if readErr != nil {
		http.Error(w, "Failed to read file: "+readErr.Error(), http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	ctx := r.Context()
	id, addErr := s.store.Add(ctx, items.NewInlineItem(secretWord, content, contentType))
	if addErr != nil {
		writeError(w, r, "Failed to store image", addErr)
		return
	}

	if item, getErr := s.store.Get(ctx, id); getErr == nil {
		if locator, ok := item.Image.(items.ImageLocator); ok {
			s.sessions.Flash(sid, Flash{Text: "Uploaded image at: " + locator.URL})
		}
	} else {
		slog.WarnContext(ctx, "Failed to read back uploaded item", "id", id, "error", getErr)
	}
	s.sessions.Flash(sid, Flash{Text: fmt.Sprintf("Uploaded image with secret word: %q", secretWord)})

	secrets, secretsErr := s.store.AllSecrets(ctx)
	if secretsErr != nil {
		writeError(w, r, "Failed to list secrets", secretsErr)
		return
	}
	s.sessions.Flash(sid, Flash{Text: fmt.Sprintf("All available secret words: %q", secrets)})

	if s.events != nil {
		if err := s.events.ItemAdded(id, len(secrets)); err != nil {
			slog.WarnContext(ctx, "Failed to publish event", "id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "Image uploaded", "id", id, "content_type", contentType, "size", len(content))
	s.redirect(w, r, "/images")
}

func (s *Server) Game(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	sid := s.sessions.ID(w, r)
	ctx := r.Context()

	empty, emptyErr := s.store.IsEmpty(ctx)
	if emptyErr != nil {
		writeError(w, r, "Failed to check items", emptyErr)
		return
	}
	if empty {
		s.sessions.Flash(sid, Flash{Text: noImagesMessage})
		s.redirect(w, r, "/")
		return
	}

	secret, ok := s.sessions.Secret(sid)
	if ok {
		// The item may be gone after a restart with a volatile store.
		has, hasErr := s.store.Has(ctx, secret)
		if hasErr != nil {
			writeError(w, r, "Failed to check item", hasErr)
			return
		}
		ok = has
	}
	if !ok {
		drawn, found, drawErr := s.store.RandomIdentifier(ctx)
		if drawErr != nil {
			writeError(w, r, "Failed to pick item", drawErr)
			return
		}
		if !found {
			s.sessions.Flash(sid, Flash{Text: noImagesMessage})
			s.redirect(w, r, "/")
			return
		}
		secret = drawn
		s.sessions.SetSecret(sid, secret)
	}

	s.render(w, r, "game.html", page{
		Flashes: s.sessions.Flashes(sid),
		ItemID:  secret,
	})
}

func (s *Server) Image(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var itemID string
	if err := oapiruntime.BindQueryParameter("form", true, true, "item_id", r.URL.Query(), &itemID); err != nil {
		http.Error(w, "Invalid item_id parameter: "+err.Error(), http.StatusBadRequest)
		return
	}

	item, getErr := s.store.Get(r.Context(), items.Identifier(itemID))
	if getErr != nil {
		writeError(w, r, "Failed to get item", getErr)
		return
	}

	switch img := item.Image.(type) {
	case items.InlineImage:
		setContentHeaders(w, img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Content)))
		if _, err := w.Write(img.Content); err != nil {
			slog.WarnContext(r.Context(), "Failed to write image", "error", err)
		}
	case items.ImageLocator:
		http.Redirect(w, r, img.URL, http.StatusFound)
	default:
		http.Error(w, "Unknown image kind", http.StatusInternalServerError)
	}
}

func (s *Server) MakeAGuess(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if parseErr := r.ParseForm(); parseErr != nil {
		http.Error(w, fmt.Sprintf("failed to parse form: %s", parseErr.Error()), http.StatusBadRequest)
		return
	}

	sid, ok := s.sessions.Lookup(r)
	if !ok {
		s.redirect(w, r, "/game")
		return
	}
	secret, ok := s.sessions.Secret(sid)
	if !ok {
		s.redirect(w, r, "/game")
		return
	}

	item, getErr := s.store.Get(r.Context(), secret)
	if errors.Is(getErr, items.ErrNotFound) {
		s.sessions.ClearSecret(sid)
		s.redirect(w, r, "/game")
		return
	}
	if getErr != nil {
		writeError(w, r, "Failed to get item", getErr)
		return
	}

	if r.PostFormValue("guessed_word") == item.SecretWord {
		s.sessions.Flash(sid, Flash{
			Text:     "You guessed right! Good job! The secret word was",
			Emphasis: item.SecretWord,
		})
		s.sessions.ClearSecret(sid)
		s.redirect(w, r, "/")
		return
	}

	s.sessions.Flash(sid, Flash{Text: "You didn't guess right! Try again!"})
	s.redirect(w, r, "/game")
}

func (s *Server) Secrets(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	secrets, err := s.store.AllSecrets(r.Context())
	if err != nil {
		writeError(w, r, "Failed to list secrets", err)
		return
	}
	writeJSON(w, r, map[string][]string{"secrets": secrets})
}

// ItemInfo describes an item without revealing its secret word.
type ItemInfo struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (s *Server) Item(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var itemID string
	if err := oapiruntime.BindStyledParameterWithOptions("simple", "itemId", pathParams["itemId"], &itemID,
		oapiruntime.BindStyledParameterOptions{ParamLocation: oapiruntime.ParamLocationPath, Required: true}); err != nil {
		http.Error(w, "Invalid itemId parameter: "+err.Error(), http.StatusBadRequest)
		return
	}

	item, err := s.store.Get(r.Context(), items.Identifier(itemID))
	if err != nil {
		writeError(w, r, "Failed to get item", err)
		return
	}

	info := ItemInfo{ID: itemID}
	switch img := item.Image.(type) {
	case items.InlineImage:
		info.Kind = "inline"
		info.ContentType = img.ContentType
		info.Size = len(img.Content)
	case items.ImageLocator:
		info.Kind = "locator"
		info.URL = img.URL
	}
	writeJSON(w, r, info)
}

func (s *Server) Blob(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if s.objects == nil {
		http.NotFound(w, r)
		return
	}

	name := pathParams["name"]
	rc, meta, err := s.objects.Open(name)
	if errors.Is(err, blob.ErrObjectNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.WarnContext(r.Context(), "Failed to open object", "name", name, "error", err)
		http.Error(w, "Failed to open object", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			slog.Warn("Failed to close object", "name", name, "error", closeErr)
		}
	}()

	setContentHeaders(w, meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	if _, copyErr := io.Copy(w, rc); copyErr != nil {
		slog.WarnContext(r.Context(), "Failed to write object", "name", name, "error", copyErr)
	}
}

func (s *Server) OpenAPI(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	spec, err := GenerateOpenAPISpecs()
	if err != nil {
		http.Error(w, "Failed to generate OpenAPI specs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if _, writeErr := io.WriteString(w, spec); writeErr != nil {
		slog.WarnContext(r.Context(), "Failed to write OpenAPI specs", "error", writeErr)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "Failed to encode JSON response", "error", err)
	}
}
