package memory

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/q-controller/guessit/src/pkg/items"
)

var _ items.Store = (*Store)(nil)

// Store keeps items in an append-only slice. Identifiers are the decimal
// positions of the items.
type Store struct {
	mu    sync.RWMutex
	items []items.StorageItem
	intn  items.IntN
}

type Option func(*Store)

// WithIntN replaces the random source used by RandomIdentifier.
func WithIntN(intn items.IntN) Option {
	return func(s *Store) {
		s.intn = intn
	}
}

func New(opts ...Option) *Store {
	s := &Store{intn: items.DefaultIntN}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Add(ctx context.Context, item items.StorageItem) (items.Identifier, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.items = append(s.items, item.Clone())
	index := len(s.items) - 1
	s.mu.Unlock()

	slog.DebugContext(ctx, "Item added", "store", "memory", "index", index)
	return formatIndex(index), nil
}

func (s *Store) Has(_ context.Context, id items.Identifier) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index(id)
	return ok, nil
}

func (s *Store) Get(_ context.Context, id items.Identifier) (items.StorageItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.index(id)
	if !ok {
		return items.StorageItem{}, items.ErrNotFound
	}
	return s.items[index].Clone(), nil
}

func (s *Store) RandomIdentifier(_ context.Context) (items.Identifier, bool, error) {
	s.mu.RLock()
	count := len(s.items)
	s.mu.RUnlock()

	if count == 0 {
		return "", false, nil
	}
	return formatIndex(s.intn(count)), true, nil
}

func (s *Store) AllSecrets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secrets := make([]string, 0, len(s.items))
	for _, item := range s.items {
		secrets = append(secrets, item.SecretWord)
	}
	return secrets, nil
}

func (s *Store) IsEmpty(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0, nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// index must be called with s.mu held. Only the canonical decimal form is
// accepted, so "01" and "+1" do not alias item 1.
func (s *Store) index(id items.Identifier) (int, bool) {
	index, err := strconv.Atoi(string(id))
	if err != nil || index < 0 || index >= len(s.items) {
		return 0, false
	}
	if formatIndex(index) != id {
		return 0, false
	}
	return index, true
}

func formatIndex(index int) items.Identifier {
	return items.Identifier(strconv.Itoa(index))
}
