package items

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for an identifier that names no stored item.
	ErrNotFound = errors.New("item not found")
	// ErrUnavailable wraps faults of the service backing a store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidItem is returned by Add for an item that cannot be stored.
	ErrInvalidItem = errors.New("invalid item")
)

// Identifier names one item within the store that issued it. Its format is
// private to the backend.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// Image is either an InlineImage or an ImageLocator.
type Image interface {
	isImage()
}

// InlineImage carries the raw image bytes.
type InlineImage struct {
	Content     []byte
	ContentType string
}

// ImageLocator points at image bytes held by an external object store.
type ImageLocator struct {
	URL string
}

func (InlineImage) isImage()  {}
func (ImageLocator) isImage() {}

// StorageItem pairs a secret word with its image. Items are never modified
// once added to a store.
type StorageItem struct {
	SecretWord string
	Image      Image
}

func NewInlineItem(secretWord string, content []byte, contentType string) StorageItem {
	return StorageItem{
		SecretWord: secretWord,
		Image:      InlineImage{Content: content, ContentType: contentType},
	}
}

func NewLocatorItem(secretWord, url string) StorageItem {
	return StorageItem{
		SecretWord: secretWord,
		Image:      ImageLocator{URL: url},
	}
}

// Validate reports whether the item is well-formed enough to be added.
func (i StorageItem) Validate() error {
	if i.SecretWord == "" {
		return fmt.Errorf("%w: secret word is empty", ErrInvalidItem)
	}
	switch img := i.Image.(type) {
	case InlineImage:
		return nil
	case ImageLocator:
		if img.URL == "" {
			return fmt.Errorf("%w: image locator is empty", ErrInvalidItem)
		}
		return nil
	default:
		return fmt.Errorf("%w: image is not set", ErrInvalidItem)
	}
}

// Clone returns a copy that shares no memory with i.
func (i StorageItem) Clone() StorageItem {
	if img, ok := i.Image.(InlineImage); ok {
		content := make([]byte, len(img.Content))
		copy(content, img.Content)
		i.Image = InlineImage{Content: content, ContentType: img.ContentType}
	}
	return i
}
