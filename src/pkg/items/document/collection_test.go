package document_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/q-controller/guessit/src/pkg/items/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingCollection interface {
	document.Collection
	Close() error
}

func testCollections(t *testing.T) map[string]closingCollection {
	t.Helper()

	badgerCollection, err := document.NewBadgerCollection(t.TempDir())
	require.NoError(t, err)

	sqliteCollection, err := document.NewSQLiteCollection(":memory:")
	require.NoError(t, err)

	collections := map[string]closingCollection{
		"badger": badgerCollection,
		"sqlite": sqliteCollection,
	}

	if dsn := os.Getenv("GUESSIT_TEST_POSTGRES_DSN"); dsn != "" {
		pgCollection, pgErr := document.NewPostgresCollection(context.Background(), dsn)
		require.NoError(t, pgErr)
		collections["postgres"] = pgCollection
	} else {
		t.Log("GUESSIT_TEST_POSTGRES_DSN not set, skipping postgres collection")
	}

	t.Cleanup(func() {
		for _, c := range collections {
			_ = c.Close()
		}
	})
	return collections
}

// Ids are random so the tests tolerate rows left over in a shared database.
func TestCollections(t *testing.T) {
	for name, collection := range testCollections(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, second := uuid.NewString(), uuid.NewString()

			_, err := collection.Read(ctx, first)
			assert.True(t, errors.Is(err, document.ErrDocumentNotFound), "got %v", err)

			for _, malformed := range []string{"", "\x00", "\xff"} {
				_, err = collection.Read(ctx, malformed)
				assert.ErrorIs(t, err, document.ErrDocumentNotFound, "id %q", malformed)
			}

			require.NoError(t, collection.Upsert(ctx, first, document.Document{
				SecretWord: "a cat",
				ImageURL:   "https://blobs.test/cat",
			}))
			require.NoError(t, collection.Upsert(ctx, second, document.Document{
				SecretWord:       "a dog",
				ImageBytes:       []byte{0, 1, 2, 255},
				ImageContentType: "image/png",
			}))

			doc, err := collection.Read(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, "a cat", doc.SecretWord)
			assert.Equal(t, "https://blobs.test/cat", doc.ImageURL)

			doc, err = collection.Read(ctx, second)
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 1, 2, 255}, doc.ImageBytes)
			assert.Equal(t, "image/png", doc.ImageContentType)

			// Upsert overwrites without error.
			require.NoError(t, collection.Upsert(ctx, first, document.Document{
				SecretWord: "a lion",
				ImageURL:   "https://blobs.test/lion",
			}))
			doc, err = collection.Read(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, "a lion", doc.SecretWord)

			keys, err := collection.Keys(ctx)
			require.NoError(t, err)
			assert.Contains(t, keys, first)
			assert.Contains(t, keys, second)

			limited, err := collection.Limit(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			none, err := collection.Limit(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, none)

			seen := map[string]string{}
			require.NoError(t, collection.Scan(ctx, func(id string, doc document.Document) error {
				seen[id] = doc.SecretWord
				return nil
			}))
			assert.Equal(t, "a lion", seen[first])
			assert.Equal(t, "a dog", seen[second])

			stop := errors.New("stop")
			err = collection.Scan(ctx, func(string, document.Document) error { return stop })
			assert.ErrorIs(t, err, stop)
		})
	}
}

func TestBadgerCollectionPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := document.NewBadgerCollection(dir)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, "id", document.Document{SecretWord: "a cat", ImageURL: "u"}))
	require.NoError(t, c.Close())

	c, err = document.NewBadgerCollection(dir)
	require.NoError(t, err)
	defer c.Close()

	doc, err := c.Read(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, "a cat", doc.SecretWord)
}

func TestBadgerCollectionCancelledScan(t *testing.T) {
	c, err := document.NewBadgerCollection("")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Upsert(context.Background(), "id", document.Document{SecretWord: "a cat", ImageURL: "u"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Keys(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
