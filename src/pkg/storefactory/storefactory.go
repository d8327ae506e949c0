package storefactory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/q-controller/guessit/src/pkg/config"
	"github.com/q-controller/guessit/src/pkg/items"
	"github.com/q-controller/guessit/src/pkg/items/blob"
	"github.com/q-controller/guessit/src/pkg/items/document"
	"github.com/q-controller/guessit/src/pkg/items/memory"
)

// Storage is an opened item store together with the resources behind it.
type Storage struct {
	Items items.Store
	// Objects serves uploaded images when the blob backend is local, nil
	// otherwise.
	Objects *blob.LocalBackend

	closers []io.Closer
}

// Close releases resources in reverse order of acquisition.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Storage) track(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Open builds the item store selected by cfg.
func Open(ctx context.Context, cfg config.Storage) (*Storage, error) {
	s := &Storage{}

	store, err := s.open(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	s.Items = store

	slog.InfoContext(ctx, "Storage opened", "backend", cfg.Backend)
	return s, nil
}

func (s *Storage) open(ctx context.Context, cfg config.Storage) (items.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendDocument:
		collection, err := s.openCollection(ctx, cfg.Document)
		if err != nil {
			return nil, err
		}
		return document.NewStore(collection), nil
	case config.BackendBlob:
		backend, err := s.openBackend(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}

		var records items.Store
		switch cfg.Blob.Records {
		case config.BackendMemory:
			records = memory.New()
		case config.BackendDocument:
			collection, err := s.openCollection(ctx, cfg.Document)
			if err != nil {
				return nil, err
			}
			records = document.NewStore(collection)
		default:
			return nil, fmt.Errorf("unknown blob records store %q", cfg.Blob.Records)
		}
		return blob.NewStore(records, backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (s *Storage) openBackend(ctx context.Context, cfg config.Blob) (blob.Backend, error) {
	switch cfg.Kind {
	case config.BlobLocal:
		backend, err := blob.NewLocalBackend(cfg.Local.Root, cfg.Local.URLPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open local blob backend: %w", err)
		}
		s.track(backend)
		s.Objects = backend
		return backend, nil
	case config.BlobS3:
		backend, err := blob.NewS3Backend(ctx, blob.S3Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 blob backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown blob kind %q", cfg.Kind)
	}
}

func (s *Storage) openCollection(ctx context.Context, cfg config.Document) (document.Collection, error) {
	switch cfg.Kind {
	case config.DocumentMemory:
		return document.NewMemoryCollection(), nil
	case config.DocumentBadger:
		c, err := document.NewBadgerCollection(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger collection: %w", err)
		}
		s.track(c)
		return c, nil
	case config.DocumentSQLite:
		c, err := document.NewSQLiteCollection(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite collection: %w", err)
		}
		s.track(c)
		return c, nil
	case config.DocumentPostgres:
		c, err := document.NewPostgresCollection(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres collection: %w", err)
		}
		s.track(c)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown document kind %q", cfg.Kind)
	}
}
