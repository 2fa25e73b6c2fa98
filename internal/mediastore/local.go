package mediastore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// LocalStore persists media blobs to local disk. It is intended for
// development; the HTTP layer serves the base directory under /media/.
type LocalStore struct {
	baseDir    string
	httpClient *http.Client
	buckets    Buckets
	publicBase string // e.g. http://localhost:8080/media
}

// NewLocalStore creates a local disk media store rooted at baseDir.
// Objects become resolvable under publicBase, which should map to baseDir in
// the serving layer.
func NewLocalStore(baseDir, publicBase string, buckets Buckets) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if buckets.Videos == "" || buckets.Audio == "" {
		buckets = DefaultBuckets()
	}
	return &LocalStore{
		baseDir:    baseDir,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		buckets:    buckets,
		publicBase: publicBase,
	}, nil
}

// BaseDir returns the root directory of the store.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Save writes the blob under {baseDir}/{bucket}/{key} and returns its URL.
func (s *LocalStore) Save(ctx context.Context, ownerID string, kind Kind, filename string, data io.Reader) (string, error) {
	ext := extOf(filename, kind)
	key := objectKey(ownerID, ext)
	bucket := s.buckets.For(kind)

	dest := filepath.Join(s.baseDir, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, key), nil
}

// Mirror fetches the source URL and persists the bytes like Save.
func (s *LocalStore) Mirror(ctx context.Context, ownerID string, kind Kind, sourceURL string) (string, error) {
	body, err := fetchSource(ctx, s.httpClient, sourceURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	return s.Save(ctx, ownerID, kind, sourceURL, body)
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)
