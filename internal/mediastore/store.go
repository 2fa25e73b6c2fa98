// Package mediastore provides durable object storage for video and audio
// blobs. It defines the Store interface (port) and implementations for S3 and
// local disk. Given a transient reader or remote URL, a Store returns a stable
// public URL that outlives the originating source.
package mediastore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Static errors for media store operations.
var (
	// ErrFetchFailed is returned when the source URL is unreachable or returns non-success.
	ErrFetchFailed = errors.New("mediastore: fetch failed")
	// ErrUploadFailed is returned when the underlying store rejects the write.
	ErrUploadFailed = errors.New("mediastore: upload failed")
)

// Kind selects the bucket and default content type for a stored object.
type Kind string

const (
	// KindVideo stores objects in the video bucket.
	KindVideo Kind = "video"
	// KindAudio stores objects in the audio bucket.
	KindAudio Kind = "audio"
)

// Buckets maps object kinds to bucket names.
type Buckets struct {
	Videos string
	Audio  string
}

// DefaultBuckets returns the default bucket names.
func DefaultBuckets() Buckets {
	return Buckets{
		Videos: "videos",
		Audio:  "audio-files",
	}
}

// For returns the bucket name for the given kind.
func (b Buckets) For(kind Kind) string {
	if kind == KindAudio {
		return b.Audio
	}
	return b.Videos
}

// Store defines the interface for durable media persistence.
// Implementations never retry internally; the caller decides.
type Store interface {
	// Save persists the blob read from data under a fresh key namespaced by
	// ownerID and returns a publicly resolvable URL. The filename is used only
	// for its extension.
	Save(ctx context.Context, ownerID string, kind Kind, filename string, data io.Reader) (url string, err error)

	// Mirror fetches the bytes behind sourceURL (typically a transient vendor
	// URL) and persists them like Save, returning the durable URL.
	Mirror(ctx context.Context, ownerID string, kind Kind, sourceURL string) (url string, err error)
}

// objectKey builds a storage key of the form {ownerID}/{millis}-{random}{ext}.
// The random suffix keeps concurrent saves within the same millisecond from
// colliding; keys are never reused, so objects are never overwritten.
func objectKey(ownerID, ext string) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%s/%d%s", ownerID, time.Now().UnixMilli(), ext)
	}
	return fmt.Sprintf("%s/%d-%s%s", ownerID, time.Now().UnixMilli(), hex.EncodeToString(suffix), ext)
}

// extOf returns the lowercase file extension of a filename or URL path,
// falling back to a default by kind when none is present.
func extOf(name string, kind Kind) string {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(path.Ext(name))
	if ext != "" {
		return ext
	}
	if kind == KindAudio {
		return ".mp3"
	}
	return ".mp4"
}

// contentTypeFor returns the MIME type for a file extension.
func contentTypeFor(ext string) string {
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// fetchSource downloads the bytes behind sourceURL. The caller must close the
// returned body.
func fetchSource(ctx context.Context, client *http.Client, sourceURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetchFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: source returned status %d", ErrFetchFailed, resp.StatusCode)
	}

	return resp.Body, nil
}
