package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/q-controller/guessit/src/pkg/items"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is the persisted form of one item. Exactly one of ImageURL and
// ImageBytes is set.
type Document struct {
	SecretWord       string `json:"secret_word"`
	ImageURL         string `json:"image_url,omitempty"`
	ImageBytes       []byte `json:"image_bytes,omitempty"`
	ImageContentType string `json:"image_content_type,omitempty"`
}

// Collection is a keyed set of documents in an external database.
type Collection interface {
	// Upsert writes doc under id whether or not the key exists.
	Upsert(ctx context.Context, id string, doc Document) error
	// Read returns ErrDocumentNotFound when id is absent.
	Read(ctx context.Context, id string) (Document, error)
	// Keys lists the ids of every stored document.
	Keys(ctx context.Context) ([]string, error)
	// Scan calls fn for every stored document.
	Scan(ctx context.Context, fn func(id string, doc Document) error) error
	// Limit lists at most n ids.
	Limit(ctx context.Context, n int) ([]string, error)
}

func fromItem(item items.StorageItem) (Document, error) {
	switch img := item.Image.(type) {
	case items.InlineImage:
		return Document{
			SecretWord:       item.SecretWord,
			ImageBytes:       img.Content,
			ImageContentType: img.ContentType,
		}, nil
	case items.ImageLocator:
		return Document{
			SecretWord: item.SecretWord,
			ImageURL:   img.URL,
		}, nil
	default:
		return Document{}, fmt.Errorf("%w: unsupported image %T", items.ErrInvalidItem, item.Image)
	}
}

func (d Document) toItem() items.StorageItem {
	if d.ImageURL != "" {
		return items.NewLocatorItem(d.SecretWord, d.ImageURL)
	}
	return items.NewInlineItem(d.SecretWord, d.ImageBytes, d.ImageContentType)
}
