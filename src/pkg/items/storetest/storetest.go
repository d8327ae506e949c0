// Package storetest checks that an items.Store implementation honours the
// store contract.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a new, empty store.
type Factory func(t *testing.T) items.Store

// Options tunes the contract to what a backend promises.
type Options struct {
	// Item builds the item added under the given secret word.
	Item func(secret string) items.StorageItem
	// Expect maps an added item to the item Get is expected to return.
	// Defaults to the identity.
	Expect func(added items.StorageItem) items.StorageItem
	// Ordered is set when AllSecrets returns insertion order.
	Ordered bool
	// Malformed lists identifiers that must be reported as absent.
	Malformed []items.Identifier
}

func Run(t *testing.T, factory Factory, opts Options) {
	t.Helper()
	if opts.Item == nil {
		opts.Item = func(secret string) items.StorageItem {
			return items.NewInlineItem(secret, []byte("base64image"), "text/plain")
		}
	}
	if opts.Expect == nil {
		opts.Expect = func(added items.StorageItem) items.StorageItem { return added }
	}

	t.Run("IsEmpty", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		empty, err := store.IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)

		for i := range 3 {
			_, addErr := store.Add(ctx, opts.Item(fmt.Sprintf("a cat %d", i)))
			require.NoError(t, addErr)

			empty, err = store.IsEmpty(ctx)
			require.NoError(t, err)
			assert.False(t, empty)
		}
	})

	t.Run("RandomIdentifierEmpty", func(t *testing.T) {
		store := factory(t)

		_, ok, err := store.RandomIdentifier(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("AddHasGet", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		first := opts.Item("a cat")
		firstID, err := store.Add(ctx, first)
		require.NoError(t, err)

		second := opts.Item("a dog")
		secondID, err := store.Add(ctx, second)
		require.NoError(t, err)
		assert.NotEqual(t, firstID, secondID)

		for range 3 {
			for id, item := range map[items.Identifier]items.StorageItem{firstID: first, secondID: second} {
				has, hasErr := store.Has(ctx, id)
				require.NoError(t, hasErr)
				assert.True(t, has)

				got, getErr := store.Get(ctx, id)
				require.NoError(t, getErr)
				assert.Equal(t, opts.Expect(item), got)
			}
		}
	})

	t.Run("HasMalformed", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		malformed := append([]items.Identifier{"", "not-an-id", "-1", "123", "\x00", "\xff", "a\x00b"}, opts.Malformed...)
		for _, id := range malformed {
			has, err := store.Has(ctx, id)
			require.NoError(t, err, "id %q", id)
			assert.False(t, has, "id %q", id)
		}

		_, err := store.Add(ctx, opts.Item("a cat"))
		require.NoError(t, err)
		for _, id := range malformed {
			has, hasErr := store.Has(ctx, id)
			require.NoError(t, hasErr, "id %q", id)
			assert.False(t, has, "id %q", id)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		store := factory(t)

		for _, id := range []items.Identifier{"123", "", "\x00", "\xff"} {
			_, err := store.Get(context.Background(), id)
			assert.ErrorIs(t, err, items.ErrNotFound, "id %q", id)
		}
	})

	t.Run("RandomIdentifierSingleItem", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		id, err := store.Add(ctx, opts.Item("a cat"))
		require.NoError(t, err)

		for range 100 {
			got, ok, randErr := store.RandomIdentifier(ctx)
			require.NoError(t, randErr)
			require.True(t, ok)
			require.Equal(t, id, got)
		}
	})

	t.Run("RandomIdentifierUniform", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		const n, draws = 5, 1000
		counts := make(map[items.Identifier]int, n)
		for i := range n {
			id, err := store.Add(ctx, opts.Item(fmt.Sprintf("secret %d", i)))
			require.NoError(t, err)
			counts[id] = 0
		}

		for range draws {
			id, ok, err := store.RandomIdentifier(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			_, known := counts[id]
			require.True(t, known, "unknown id %q", id)
			counts[id]++
		}

		// Expected 200 per bucket; bounds sit well beyond five standard deviations.
		for id, count := range counts {
			assert.Greater(t, count, 120, "id %q", id)
			assert.Less(t, count, 280, "id %q", id)
		}
	})

	t.Run("AllSecrets", func(t *testing.T) {
		ctx := context.Background()
		store := factory(t)

		secrets, err := store.AllSecrets(ctx)
		require.NoError(t, err)
		assert.Empty(t, secrets)

		for _, secret := range []string{"a cat", "a dog"} {
			_, addErr := store.Add(ctx, opts.Item(secret))
			require.NoError(t, addErr)
		}

		secrets, err = store.AllSecrets(ctx)
		require.NoError(t, err)
		if opts.Ordered {
			assert.Equal(t, []string{"a cat", "a dog"}, secrets)
		} else {
			assert.ElementsMatch(t, []string{"a cat", "a dog"}, secrets)
		}
	})

	t.Run("AddInvalid", func(t *testing.T) {
		store := factory(t)

		_, err := store.Add(context.Background(), items.StorageItem{SecretWord: "a cat"})
		assert.ErrorIs(t, err, items.ErrInvalidItem)

		empty, err := store.IsEmpty(context.Background())
		require.NoError(t, err)
		assert.True(t, empty)
	})
}
