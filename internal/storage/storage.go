package storage

import (
	"context"
	"io"
)

// ImageStore persists uploaded product images and returns a public URL for
// each stored file.
type ImageStore interface {
	// Save writes the image for a product and returns its public URL. A
	// second upload for the same product replaces the previous image.
	Save(ctx context.Context, productID, filename string, r io.Reader) (string, error)

	// Remove deletes the stored image for a product. Removing an absent
	// image is not an error.
	Remove(ctx context.Context, productID string) error
}
