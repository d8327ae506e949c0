package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/q-controller/guessit/src/pkg/items/memory"
	"github.com/q-controller/guessit/src/pkg/items/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) items.Store {
		return memory.New()
	}, storetest.Options{
		Ordered:   true,
		Malformed: []items.Identifier{"01", "+0", "0x0", " 0", "1.0"},
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	id, err := store.Add(ctx, items.NewInlineItem("a cat", []byte("base64image"), "text/plain"))
	require.NoError(t, err)
	assert.Equal(t, items.Identifier("0"), id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a cat", got.SecretWord)

	img, ok := got.Image.(items.InlineImage)
	require.True(t, ok)
	assert.Equal(t, []byte("base64image"), img.Content)
	assert.Equal(t, "text/plain", img.ContentType)
}

func TestSequentialIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for _, want := range []items.Identifier{"0", "1", "2"} {
		id, err := store.Add(ctx, items.NewLocatorItem("secret", "https://example.com/"+string(want)))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, 3, store.Len())
}

func TestItemsAreNotShared(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	content := []byte("original")
	id, err := store.Add(ctx, items.NewInlineItem("a cat", content, "image/png"))
	require.NoError(t, err)
	content[0] = 'X'

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	got.Image.(items.InlineImage).Content[1] = 'Y'

	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again.Image.(items.InlineImage).Content)
}

func TestRandomIdentifierUsesSource(t *testing.T) {
	ctx := context.Background()
	var calls []int
	store := memory.New(memory.WithIntN(func(n int) int {
		calls = append(calls, n)
		return n - 1
	}))

	for range 4 {
		_, err := store.Add(ctx, items.NewLocatorItem("secret", "https://example.com/x"))
		require.NoError(t, err)
	}

	id, ok, err := store.RandomIdentifier(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, items.Identifier("3"), id)
	assert.Equal(t, []int{4}, calls)

	_, err = store.Add(ctx, items.NewLocatorItem("secret", "https://example.com/y"))
	require.NoError(t, err)

	id, _, err = store.RandomIdentifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, items.Identifier("4"), id)
	assert.Equal(t, []int{4, 5}, calls)
}

func TestConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var wg sync.WaitGroup
	ids := make(chan items.Identifier, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Add(ctx, items.NewLocatorItem("secret", "https://example.com/x"))
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[items.Identifier]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}
