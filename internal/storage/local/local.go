package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
)

// allowedExtensions are the accepted image file extensions.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// maxImageBytes caps the size of a stored image (5 MiB).
const maxImageBytes = 5 << 20

// Store is a filesystem-backed ImageStore. Files are written under baseDir
// and served from baseURL, keyed by product ID so re-uploads overwrite.
type Store struct {
	baseDir string
	baseURL string
}

// New creates a local image store rooted at baseDir. The directory is
// created if it does not exist.
func New(baseDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Save writes the image and returns its public URL. The file is written to a
// temp path first and renamed so readers never see a partial file.
func (s *Store) Save(_ context.Context, productID, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperrors.InvalidInput("unsupported image type, expected jpg, jpeg, png, or webp")
	}

	// Drop any previously stored image with a different extension.
	if err := s.removeAll(productID); err != nil {
		return "", err
	}

	name := productID + ext
	tmp, err := os.CreateTemp(s.baseDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if n == 0 {
		return "", apperrors.InvalidInput("image file is empty")
	}
	if n > maxImageBytes {
		return "", apperrors.InvalidInput("image exceeds the 5MB size limit")
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.baseDir, name)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

// Remove deletes the stored image for a product.
func (s *Store) Remove(_ context.Context, productID string) error {
	return s.removeAll(productID)
}

func (s *Store) removeAll(productID string) error {
	for ext := range allowedExtensions {
		path := filepath.Join(s.baseDir, productID+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove image: %w", err)
		}
	}
	return nil
}
