package dlcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeWAV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestStoreThenLookupHits(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(filepath.Join(dir, "cache"), time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	src := writeWAV(t, dir, "source.wav")
	if err := cache.Store(context.Background(), "vid1", "fp1", src, 12.5); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entry, ok, err := cache.Lookup(context.Background(), "vid1", "fp1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if entry.DurationS != 12.5 {
		t.Fatalf("expected duration 12.5, got %v", entry.DurationS)
	}
	if _, statErr := os.Stat(entry.WAVPath); statErr != nil {
		t.Fatalf("expected cached wav file to exist: %v", statErr)
	}
}

func TestLookupMissesOnUnknownKey(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(filepath.Join(dir, "cache"), time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	_, ok, err := cache.Lookup(context.Background(), "missing", "fp")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected cache miss for unknown key")
	}
}

func TestLookupExpiresEntryPastTTL(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(filepath.Join(dir, "cache"), time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	src := writeWAV(t, dir, "source.wav")
	if err := cache.Store(context.Background(), "vid1", "fp1", src, 5.0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err := cache.Lookup(context.Background(), "vid1", "fp1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(filepath.Join(dir, "cache"), time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	src := writeWAV(t, dir, "source.wav")
	if err := cache.Store(context.Background(), "vid1", "fp1", src, 1.0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Store(context.Background(), "vid1", "fp1", src, 2.0); err != nil {
		t.Fatalf("Store (overwrite): %v", err)
	}

	entry, ok, err := cache.Lookup(context.Background(), "vid1", "fp1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || entry.DurationS != 2.0 {
		t.Fatalf("expected overwritten duration 2.0, got ok=%v entry=%+v", ok, entry)
	}
}

func TestPruneExpiredRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(filepath.Join(dir, "cache"), time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	src := writeWAV(t, dir, "source.wav")
	if err := cache.Store(context.Background(), "vid1", "fp1", src, 1.0); err != nil {
		t.Fatalf("Store: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	n, err := cache.PruneExpired(context.Background())
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
}
