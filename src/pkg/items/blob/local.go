package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/q-controller/guessit/src/pkg/utils"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectMetadata struct {
	Name        string    `json:"name"`
	Hash        string    `json:"hash"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LocalBackend keeps objects on the local filesystem with their metadata in
// badger. Objects are exposed under urlPrefix.
type LocalBackend struct {
	root      string
	urlPrefix string
	db        *badger.DB
	mu        sync.RWMutex
}

func NewLocalBackend(root, urlPrefix string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(root, "objects_badger"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LocalBackend{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		db:        db,
	}, nil
}

func (b *LocalBackend) Upload(_ context.Context, name string, content []byte, contentType string) (string, error) {
	if name == "" {
		return "", errors.New("object name is empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hash := utils.Hash(name)
	filePath := filepath.Join(b.root, hash)
	if err := os.WriteFile(filepath.Clean(filePath), content, 0644); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	metadata := &ObjectMetadata{
		Name:        name,
		Hash:        hash,
		ContentType: contentType,
		Size:        int64(len(content)),
		UploadedAt:  time.Now(),
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		return txn.Set([]byte(name), data)
	}); err != nil {
		if rmErr := os.Remove(filePath); rmErr != nil && !os.IsNotExist(rmErr) {
			return "", errors.Join(err, rmErr)
		}
		return "", err
	}

	return b.urlPrefix + "/" + name, nil
}

// Open returns the object bytes and metadata. The caller closes the reader.
func (b *LocalBackend) Open(name string) (io.ReadCloser, *ObjectMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metadata, err := b.metadata(name)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filepath.Clean(filepath.Join(b.root, metadata.Hash)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, metadata, nil
}

func (b *LocalBackend) Exists(name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, err := b.metadata(name)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// metadata must be called with b.mu held.
func (b *LocalBackend) metadata(name string) (*ObjectMetadata, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrObjectNotFound)
	}

	var metadata ObjectMetadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrObjectNotFound, name)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &metadata)
		})
	})
	if err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (b *LocalBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
