package document

import (
	"context"
	"sort"
	"sync"
)

var _ Collection = (*MemoryCollection)(nil)

// MemoryCollection is a process-local Collection. Fail makes every call
// return the given error until it is cleared with Fail(nil).
type MemoryCollection struct {
	mu   sync.RWMutex
	docs map[string]Document
	err  error
}

func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{docs: make(map[string]Document)}
}

func (c *MemoryCollection) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *MemoryCollection) Upsert(_ context.Context, id string, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	doc.ImageBytes = append([]byte(nil), doc.ImageBytes...)
	c.docs[id] = doc
	return nil
}

func (c *MemoryCollection) Read(_ context.Context, id string) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return Document{}, c.err
	}
	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	doc.ImageBytes = append([]byte(nil), doc.ImageBytes...)
	return doc, nil
}

func (c *MemoryCollection) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.sortedKeys(len(c.docs)), nil
}

func (c *MemoryCollection) Scan(_ context.Context, fn func(id string, doc Document) error) error {
	c.mu.RLock()
	if c.err != nil {
		defer c.mu.RUnlock()
		return c.err
	}
	keys := c.sortedKeys(len(c.docs))
	docs := make([]Document, len(keys))
	for i, key := range keys {
		docs[i] = c.docs[key]
	}
	c.mu.RUnlock()

	for i, key := range keys {
		if err := fn(key, docs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *MemoryCollection) Limit(_ context.Context, n int) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.sortedKeys(n), nil
}

// sortedKeys must be called with c.mu held.
func (c *MemoryCollection) sortedKeys(n int) []string {
	keys := make([]string, 0, len(c.docs))
	for key := range c.docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if n < len(keys) {
		keys = keys[:max(n, 0)]
	}
	return keys
}
