package blob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/q-controller/guessit/src/pkg/items"
)

var _ items.Store = (*Store)(nil)

// Backend is a binary object service that hands back a locator for every
// uploaded object.
type Backend interface {
	Upload(ctx context.Context, name string, content []byte, contentType string) (url string, err error)
}

// Store keeps image bytes in a Backend and only the resulting locator, with
// the secret word, in its record store. Identifiers are those of the record
// store.
type Store struct {
	records items.Store
	backend Backend
	newName func() string
}

type Option func(*Store)

// WithNameGenerator replaces the uuid generator used for object names.
func WithNameGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newName = gen
	}
}

func NewStore(records items.Store, backend Backend, opts ...Option) *Store {
	s := &Store{
		records: records,
		backend: backend,
		newName: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Add(ctx context.Context, item items.StorageItem) (items.Identifier, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}

	img, ok := item.Image.(items.InlineImage)
	if !ok {
		// Already uploaded elsewhere.
		return s.records.Add(ctx, item)
	}

	name := s.newName()
	url, uploadErr := s.backend.Upload(ctx, name, img.Content, img.ContentType)
	if uploadErr != nil {
		return "", fmt.Errorf("%w: failed to upload image %s: %w", items.ErrUnavailable, name, uploadErr)
	}
	slog.DebugContext(ctx, "Image uploaded", "name", name, "url", url, "bytes", len(img.Content))

	return s.records.Add(ctx, items.NewLocatorItem(item.SecretWord, url))
}

func (s *Store) Has(ctx context.Context, id items.Identifier) (bool, error) {
	return s.records.Has(ctx, id)
}

func (s *Store) Get(ctx context.Context, id items.Identifier) (items.StorageItem, error) {
	return s.records.Get(ctx, id)
}

func (s *Store) RandomIdentifier(ctx context.Context) (items.Identifier, bool, error) {
	return s.records.RandomIdentifier(ctx)
}

func (s *Store) AllSecrets(ctx context.Context) ([]string, error) {
	return s.records.AllSecrets(ctx)
}

func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	return s.records.IsEmpty(ctx)
}
