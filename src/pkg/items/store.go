package items

import (
	"context"
	"math/rand/v2"
)

// Store keeps secret items and hands them out by identifier.
type Store interface {
	// Add stores the item and returns its newly minted identifier.
	Add(ctx context.Context, item StorageItem) (Identifier, error)
	// Has reports whether id names a stored item. Identifiers of the wrong
	// shape are reported as absent, not as errors.
	Has(ctx context.Context, id Identifier) (bool, error)
	// Get returns the item named by id, or ErrNotFound.
	Get(ctx context.Context, id Identifier) (StorageItem, error)
	// RandomIdentifier draws uniformly among the items stored at call time.
	// ok is false when the store is empty.
	RandomIdentifier(ctx context.Context) (id Identifier, ok bool, err error)
	// AllSecrets returns the secret word of every stored item.
	AllSecrets(ctx context.Context) ([]string, error)
	// IsEmpty reports whether nothing has been added yet.
	IsEmpty(ctx context.Context) (bool, error)
}

// IntN returns a uniform integer in [0, n).
type IntN func(n int) int

// DefaultIntN is backed by math/rand/v2.
var DefaultIntN IntN = rand.IntN

// PickIdentifier draws one of ids with a single call to intn.
func PickIdentifier(ids []Identifier, intn IntN) (Identifier, bool) {
	if len(ids) == 0 {
		return "", false
	}
	if intn == nil {
		intn = DefaultIntN
	}
	return ids[intn(len(ids))], true
}
