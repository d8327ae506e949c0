package document_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/q-controller/guessit/src/pkg/items/document"
	"github.com/q-controller/guessit/src/pkg/items/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var locatorItem = func(secret string) items.StorageItem {
	return items.NewLocatorItem(secret, "https://blobs.test/"+secret)
}

func TestStoreContract(t *testing.T) {
	collections := map[string]func(t *testing.T) document.Collection{
		"memory": func(t *testing.T) document.Collection {
			return document.NewMemoryCollection()
		},
		"badger": func(t *testing.T) document.Collection {
			c, err := document.NewBadgerCollection("")
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
		"sqlite": func(t *testing.T) document.Collection {
			c, err := document.NewSQLiteCollection(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
	}
	if dsn := os.Getenv("GUESSIT_TEST_POSTGRES_DSN"); dsn != "" {
		collections["postgres"] = func(t *testing.T) document.Collection {
			ctx := context.Background()
			table := "documents_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			c, err := document.NewPostgresCollection(ctx, dsn, document.WithTable(table))
			require.NoError(t, err)
			t.Cleanup(func() {
				assert.NoError(t, c.Drop(ctx))
				_ = c.Close()
			})
			return c
		}
	} else {
		t.Log("GUESSIT_TEST_POSTGRES_DSN not set, skipping postgres store")
	}
	for name, newCollection := range collections {
		t.Run(name, func(t *testing.T) {
			t.Run("inline", func(t *testing.T) {
				storetest.Run(t, func(t *testing.T) items.Store {
					return document.NewStore(newCollection(t))
				}, storetest.Options{})
			})
			t.Run("locator", func(t *testing.T) {
				storetest.Run(t, func(t *testing.T) items.Store {
					return document.NewStore(newCollection(t))
				}, storetest.Options{Item: locatorItem})
			})
		})
	}
}

func TestAddMintsUUIDs(t *testing.T) {
	ctx := context.Background()
	store := document.NewStore(document.NewMemoryCollection())

	id, err := store.Add(ctx, locatorItem("a cat"))
	require.NoError(t, err)
	_, err = uuid.Parse(string(id))
	assert.NoError(t, err)
}

func TestPersistedLayout(t *testing.T) {
	ctx := context.Background()
	collection := document.NewMemoryCollection()
	store := document.NewStore(collection, document.WithIDGenerator(func() string { return "fixed" }))

	id, err := store.Add(ctx, locatorItem("a cat"))
	require.NoError(t, err)
	assert.Equal(t, items.Identifier("fixed"), id)

	doc, err := collection.Read(ctx, "fixed")
	require.NoError(t, err)
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret_word":"a cat","image_url":"https://blobs.test/a cat"}`, string(body))

	_, err = store.Add(ctx, items.NewInlineItem("a dog", []byte("woof"), "image/png"))
	require.NoError(t, err)
	doc, err = collection.Read(ctx, "fixed")
	require.NoError(t, err)
	body, err = json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret_word":"a dog","image_bytes":"d29vZg==","image_content_type":"image/png"}`, string(body))
}

func TestUnavailableIsNotAbsent(t *testing.T) {
	ctx := context.Background()
	collection := document.NewMemoryCollection()
	store := document.NewStore(collection)

	id, err := store.Add(ctx, locatorItem("a cat"))
	require.NoError(t, err)

	outage := errors.New("connection refused")
	collection.Fail(outage)

	has, err := store.Has(ctx, id)
	assert.False(t, has)
	assert.ErrorIs(t, err, items.ErrUnavailable)
	assert.ErrorIs(t, err, outage)

	has, err = store.Has(ctx, "missing")
	assert.False(t, has)
	assert.ErrorIs(t, err, items.ErrUnavailable)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, items.ErrUnavailable)
	assert.NotErrorIs(t, err, items.ErrNotFound)

	_, _, err = store.RandomIdentifier(ctx)
	assert.ErrorIs(t, err, items.ErrUnavailable)

	_, err = store.AllSecrets(ctx)
	assert.ErrorIs(t, err, items.ErrUnavailable)

	_, err = store.IsEmpty(ctx)
	assert.ErrorIs(t, err, items.ErrUnavailable)

	_, err = store.Add(ctx, locatorItem("a dog"))
	assert.ErrorIs(t, err, items.ErrUnavailable)

	collection.Fail(nil)

	has, err = store.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, has)

	secrets, err := store.AllSecrets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a cat"}, secrets)
}

func TestRandomIdentifierSeesNewItems(t *testing.T) {
	ctx := context.Background()
	var ids []string
	next := 0
	store := document.NewStore(document.NewMemoryCollection(),
		document.WithIDGenerator(func() string {
			next++
			id := string(rune('a' + next - 1))
			ids = append(ids, id)
			return id
		}),
		document.WithIntN(func(n int) int { return n - 1 }),
	)

	_, err := store.Add(ctx, locatorItem("first"))
	require.NoError(t, err)
	got, ok, err := store.RandomIdentifier(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, items.Identifier("a"), got)

	_, err = store.Add(ctx, locatorItem("second"))
	require.NoError(t, err)
	got, ok, err = store.RandomIdentifier(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, items.Identifier("b"), got)
	assert.Equal(t, []string{"a", "b"}, ids)
}

// readCountingCollection fails every Read and counts the calls.
type readCountingCollection struct {
	*document.MemoryCollection
	reads int
}

func (c *readCountingCollection) Read(context.Context, string) (document.Document, error) {
	c.reads++
	return document.Document{}, errors.New("invalid byte sequence for encoding UTF8")
}

func TestUnmintableIdsSkipCollection(t *testing.T) {
	ctx := context.Background()
	collection := &readCountingCollection{MemoryCollection: document.NewMemoryCollection()}
	store := document.NewStore(collection)

	for _, id := range []items.Identifier{"", "\x00", "a\x00b", "\xff", "caf\xe9"} {
		has, err := store.Has(ctx, id)
		require.NoError(t, err, "id %q", id)
		assert.False(t, has, "id %q", id)

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, items.ErrNotFound, "id %q", id)
		assert.NotErrorIs(t, err, items.ErrUnavailable, "id %q", id)
	}
	assert.Zero(t, collection.reads)
}

// blockingCollection holds Keys until release is closed.
type blockingCollection struct {
	*document.MemoryCollection
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingCollection) Keys(ctx context.Context) ([]string, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.MemoryCollection.Keys(ctx)
}

func TestRandomIdentifierSurvivesCancelledPeer(t *testing.T) {
	ctx := context.Background()
	collection := &blockingCollection{
		MemoryCollection: document.NewMemoryCollection(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	store := document.NewStore(collection)
	id, err := store.Add(ctx, locatorItem("a cat"))
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := store.RandomIdentifier(firstCtx)
		firstErr <- err
	}()
	<-collection.started

	type result struct {
		id  items.Identifier
		ok  bool
		err error
	}
	second := make(chan result, 1)
	go func() {
		got, ok, err := store.RandomIdentifier(ctx)
		second <- result{got, ok, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, items.ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(collection.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.True(t, res.ok)
		assert.Equal(t, id, res.id)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}
