package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ingestpipe/internal/dlcache"
	"ingestpipe/internal/domain"
)

func TestCachingAcquirerPassthroughWithoutCache(t *testing.T) {
	calls := 0
	c := NewCachingAcquirer(func(ctx context.Context, videoID string) (domain.AudioArtifact, error) {
		calls++
		return domain.AudioArtifact{Path: "/tmp/x.wav"}, nil
	}, nil)

	if _, err := c.Acquire(context.Background(), "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected underlying acquirer called once, got %d", calls)
	}
}

func TestCachingAcquirerStoresAndReuses(t *testing.T) {
	dir := t.TempDir()
	cache, err := dlcache.Open(filepath.Join(dir, "cache"), 0)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	wavPath := filepath.Join(dir, "abc.wav")
	if err := os.WriteFile(wavPath, []byte("fake wav content"), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	calls := 0
	c := NewCachingAcquirer(func(ctx context.Context, videoID string) (domain.AudioArtifact, error) {
		calls++
		return domain.AudioArtifact{Path: wavPath, DurationS: 12.5}, nil
	}, cache)

	first, err := c.Acquire(context.Background(), "abc")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 underlying call, got %d", calls)
	}

	second, err := c.Acquire(context.Background(), "abc")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to avoid a second underlying call, got %d calls", calls)
	}
	if second.DurationS != first.DurationS {
		t.Fatalf("expected duration preserved across cache hit")
	}
}
