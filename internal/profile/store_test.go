package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, filename string, p diskProfile) {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal profile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), raw, 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
}

func TestLoadNormalisesCentroidAndResolvesAlias(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "chaffee.json", diskProfile{
		Name:      "Chaffee",
		Centroid:  []float32{3, 4},
		Threshold: 0.62,
	})

	store := New(dir)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	profile, ok := store.Lookup("CHAFFEE")
	if !ok {
		t.Fatalf("expected case-insensitive alias lookup to succeed")
	}
	if profile.Name != "Chaffee" {
		t.Fatalf("expected canonical name preserved, got %q", profile.Name)
	}
	if profile.Centroid[0] != 0.6 || profile.Centroid[1] != 0.8 {
		t.Fatalf("expected L2-normalised centroid [0.6 0.8], got %v", profile.Centroid)
	}
}

func TestRequireKnownFailsWithoutBootstrap(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := store.RequireKnown("primary", false); err == nil {
		t.Fatalf("expected error for missing known profile without bootstrap")
	}
	if _, err := store.RequireKnown("primary", true); err != nil {
		t.Fatalf("expected bootstrap path to succeed without error, got %v", err)
	}
}

func TestResetForTestReloads(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := store.Lookup("primary"); ok {
		t.Fatalf("expected no profile before writing fixture")
	}
	writeProfile(t, dir, "primary.json", diskProfile{Name: "primary", Centroid: []float32{1, 0}, Threshold: 0.6})
	store.ResetForTest()
	if err := store.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := store.Lookup("primary"); !ok {
		t.Fatalf("expected profile to be present after reload")
	}
}
