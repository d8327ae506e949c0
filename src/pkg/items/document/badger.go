package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var _ Collection = (*BadgerCollection)(nil)

// BadgerCollection stores documents as JSON values keyed by identifier.
type BadgerCollection struct {
	db *badger.DB
}

// NewBadgerCollection opens the database at path, or an in-memory database
// when path is empty.
func NewBadgerCollection(path string) (*BadgerCollection, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BadgerCollection{db: db}, nil
}

func (c *BadgerCollection) Upsert(_ context.Context, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(id), data)
	})
}

func (c *BadgerCollection) Read(_ context.Context, id string) (Document, error) {
	if id == "" {
		return Document{}, ErrDocumentNotFound
	}

	var doc Document
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (c *BadgerCollection) Keys(ctx context.Context) ([]string, error) {
	return c.Limit(ctx, -1)
}

// Limit lists at most n keys; a negative n lists all of them.
func (c *BadgerCollection) Limit(ctx context.Context, n int) ([]string, error) {
	keys := []string{}
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Only need keys
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && (n < 0 || len(keys) < n); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

func (c *BadgerCollection) Scan(ctx context.Context, fn func(id string, doc Document) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var doc Document
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("failed to decode document %s: %w", item.Key(), err)
			}
			if err := fn(string(item.Key()), doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database connection
func (c *BadgerCollection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
