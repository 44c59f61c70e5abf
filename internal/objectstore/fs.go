package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MJ-02/BillSplitter/internal/receipt"
)

var _ receipt.ImageStore = (*FSStore)(nil)

// FSStore writes images under a directory and hands out URLs below
// baseURL. Handler serves them back.
type FSStore struct {
	dir      string
	baseURL  string
	basePath string
	now      func() time.Time
}

// NewFSStore creates dir if needed. baseURL may be absolute or a bare
// path such as "/files".
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image base URL: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FSStore{dir: dir, baseURL: baseURL, basePath: u.Path, now: time.Now}, nil
}

// Put writes the image to a temp file and renames it into place, so a
// reader never sees a partial file.
func (s *FSStore) Put(ctx context.Context, image receipt.Image) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(image, s.now())
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// Pattern is the ServeMux pattern Handler should be registered under.
func (s *FSStore) Pattern() string {
	return "GET " + s.basePath + "/" + keyPrefix + "/"
}

// Handler serves stored images at the paths of the URLs Put returns.
func (s *FSStore) Handler() http.Handler {
	return http.StripPrefix(s.basePath, http.FileServer(http.Dir(s.dir)))
}
