package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/q-controller/guessit/src/pkg/items"
	"golang.org/x/sync/singleflight"
)

var _ items.Store = (*Store)(nil)

// keysTimeout bounds a shared key listing, which outlives the callers that
// wait on it.
const keysTimeout = 30 * time.Second

// Store keeps one document per item in a Collection, keyed by a random
// identifier minted on Add.
type Store struct {
	collection Collection
	newID      func() string
	intn       items.IntN
	keys       singleflight.Group
}

type Option func(*Store)

// WithIDGenerator replaces the uuid generator used for identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithIntN replaces the random source used by RandomIdentifier.
func WithIntN(intn items.IntN) Option {
	return func(s *Store) {
		s.intn = intn
	}
}

func NewStore(collection Collection, opts ...Option) *Store {
	s := &Store{
		collection: collection,
		newID:      uuid.NewString,
		intn:       items.DefaultIntN,
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

	doc, docErr := fromItem(item.Clone())
	if docErr != nil {
		return "", docErr
	}

	id := s.newID()
	if err := s.collection.Upsert(ctx, id, doc); err != nil {
		return "", unavailable("failed to write document "+id, err)
	}
	// Listings already in flight predate this document.
	s.keys.Forget("keys")

	slog.DebugContext(ctx, "Item added", "store", "document", "id", id)
	return items.Identifier(id), nil
}

// Has tells a missing document apart from a failing lookup; only the former
// is reported as false.
func (s *Store) Has(ctx context.Context, id items.Identifier) (bool, error) {
	if !storable(id) {
		return false, nil
	}

	_, err := s.collection.Read(ctx, string(id))
	if errors.Is(err, ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("failed to look up document "+string(id), err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, id items.Identifier) (items.StorageItem, error) {
	if !storable(id) {
		return items.StorageItem{}, fmt.Errorf("%w: %q", items.ErrNotFound, string(id))
	}

	doc, err := s.collection.Read(ctx, string(id))
	if errors.Is(err, ErrDocumentNotFound) {
		return items.StorageItem{}, fmt.Errorf("%w: %s", items.ErrNotFound, id)
	}
	if err != nil {
		return items.StorageItem{}, unavailable("failed to read document "+string(id), err)
	}
	return doc.toItem(), nil
}

// RandomIdentifier lists every stored key, so its cost grows with the
// collection. Concurrent callers share a single listing, which is not tied
// to any one caller's context.
func (s *Store) RandomIdentifier(ctx context.Context) (items.Identifier, bool, error) {
	ch := s.keys.DoChan("keys", func() (interface{}, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), keysTimeout)
		defer cancel()
		return s.collection.Keys(listCtx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return "", false, unavailable("failed to list documents", res.Err)
	}

	keys := res.Val.([]string)
	ids := make([]items.Identifier, len(keys))
	for i, key := range keys {
		ids[i] = items.Identifier(key)
	}

	id, ok := items.PickIdentifier(ids, s.intn)
	return id, ok, nil
}

func (s *Store) AllSecrets(ctx context.Context) ([]string, error) {
	secrets := []string{}
	if err := s.collection.Scan(ctx, func(_ string, doc Document) error {
		secrets = append(secrets, doc.SecretWord)
		return nil
	}); err != nil {
		return nil, unavailable("failed to scan documents", err)
	}
	return secrets, nil
}

func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	ids, err := s.collection.Limit(ctx, 1)
	if err != nil {
		return false, unavailable("failed to check for documents", err)
	}
	return len(ids) == 0, nil
}

// storable reports whether id could name a document. Postgres rejects NUL
// bytes and invalid UTF-8 in text parameters, so such ids never reach a
// collection.
func storable(id items.Identifier) bool {
	return id != "" && utf8.ValidString(string(id)) && !strings.ContainsRune(string(id), 0)
}

func unavailable(op string, err error) error {
	if errors.Is(err, items.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", items.ErrUnavailable, op, err)
}
