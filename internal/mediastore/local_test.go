package mediastore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/media", DefaultBuckets())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestLocalStore_Save(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url, err := store.Save(ctx, "user-1", KindVideo, "clip.mp4", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/media/videos/user-1/") {
		t.Errorf("unexpected URL %q", url)
	}
	if !strings.HasSuffix(url, ".mp4") {
		t.Errorf("expected .mp4 suffix, got %q", url)
	}

	// Verify the bytes landed on disk
	rel := strings.TrimPrefix(url, "http://localhost:8080/media/")
	data, err := os.ReadFile(filepath.Join(store.BaseDir(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("expected video-bytes, got %q", string(data))
	}
}

func TestLocalStore_SaveBucketByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	videoURL, err := store.Save(ctx, "user-1", KindVideo, "clip.mp4", strings.NewReader("v"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audioURL, err := store.Save(ctx, "user-1", KindAudio, "sfx.mp3", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(videoURL, "/videos/") {
		t.Errorf("expected video bucket in %q", videoURL)
	}
	if !strings.Contains(audioURL, "/audio-files/") {
		t.Errorf("expected audio bucket in %q", audioURL)
	}
}

func TestLocalStore_SaveNeverOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		url, err := store.Save(ctx, "user-1", KindAudio, "sfx.mp3", strings.NewReader("a"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[url] {
			t.Fatalf("key collision: %q returned twice", url)
		}
		seen[url] = true
	}
}

func TestLocalStore_Mirror(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote-audio"))
	}))
	defer source.Close()

	store := newTestStore(t)

	url, err := store.Mirror(context.Background(), "user-1", KindAudio, source.URL+"/x.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "/audio-files/user-1/") {
		t.Errorf("unexpected URL %q", url)
	}
	if !strings.HasSuffix(url, ".mp3") {
		t.Errorf("expected source extension to carry over, got %q", url)
	}
}

func TestLocalStore_MirrorFetchFailed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := httptest.NewServer(tt.handler)
			defer source.Close()

			store := newTestStore(t)

			_, err := store.Mirror(context.Background(), "user-1", KindAudio, source.URL)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "fetch failed") {
				t.Errorf("expected fetch failure, got %v", err)
			}
		})
	}
}

func TestExtOf(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want string
	}{
		{"clip.mp4", KindVideo, ".mp4"},
		{"CLIP.MP4", KindVideo, ".mp4"},
		{"https://cdn/x.mp3?token=abc", KindAudio, ".mp3"},
		{"noext", KindVideo, ".mp4"},
		{"noext", KindAudio, ".mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extOf(tt.name, tt.kind); got != tt.want {
				t.Errorf("extOf(%q, %q) = %q, want %q", tt.name, tt.kind, got, tt.want)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor(".mp4"); got != "video/mp4" {
		t.Errorf("expected video/mp4, got %s", got)
	}
	if got := contentTypeFor(".mp3"); got != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", got)
	}
	if got := contentTypeFor(".xyz"); got != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %s", got)
	}
}
