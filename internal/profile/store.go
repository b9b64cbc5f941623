// Package profile implements the Voice Profile Store (C1): a read-only
// cache of enrolled speaker centroids, loaded once per process.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ingestpipe/internal/domain"
)

// diskProfile is the on-disk shape written by the (external) enrollment
// tool: a JSON file per speaker under VoicesDir.
type diskProfile struct {
	Name      string            `json:"name"`
	Centroid  []float32         `json:"centroid"`
	Threshold float64           `json:"threshold"`
	Metadata  map[string]string `json:"metadata"`
}

// Store is the lazy-once, thread-safe voice profile cache. It is loaded
// once per process and never mutated by ingestion; ResetForTest clears the
// cache so tests can load a fresh fixture directory.
type Store struct {
	mu       sync.Mutex
	loaded   bool
	dir      string
	profiles map[string]domain.VoiceProfile
}

// New constructs a Store rooted at dir (spec's VOICES_DIR).
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads every *.json profile under the store's directory, L2-normalising
// each centroid, and caches the result. Subsequent calls are no-ops.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.profiles = map[string]domain.VoiceProfile{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read voices dir: %w", err)
	}

	profiles := make(map[string]domain.VoiceProfile, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read profile %s: %w", path, err)
		}
		var disk diskProfile
		if err := json.Unmarshal(raw, &disk); err != nil {
			return fmt.Errorf("parse profile %s: %w", path, err)
		}
		name := strings.TrimSpace(disk.Name)
		if name == "" {
			continue
		}
		profiles[canonicalKey(name)] = domain.VoiceProfile{
			Name:      name,
			Centroid:  normalize(disk.Centroid),
			Threshold: disk.Threshold,
			Metadata:  disk.Metadata,
		}
	}

	s.profiles = profiles
	s.loaded = true
	return nil
}

// ResetForTest clears the cache so the next Load re-reads the directory.
func (s *Store) ResetForTest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.profiles = nil
}

// Lookup resolves a raw alias ("CH", "CHAFFEE", "Chaffee") to its canonical
// profile, case- and whitespace-insensitively. This is the single place
// alias normalisation happens before a domain.SpeakerLabel is constructed.
func (s *Store) Lookup(alias string) (domain.VoiceProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[canonicalKey(alias)]
	return profile, ok
}

// All returns every loaded profile, safe for concurrent readers since
// profiles are never mutated after Load.
func (s *Store) All() []domain.VoiceProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.VoiceProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// RequireKnown returns the known-speaker profile, or
// domain.ErrMissingKnownProfile if it is absent and bootstrap is not
// requested. The spec requires refusing to start ingestion rather than
// silently degrading.
func (s *Store) RequireKnown(knownName string, bootstrap bool) (domain.VoiceProfile, error) {
	profile, ok := s.Lookup(knownName)
	if !ok {
		if bootstrap {
			return domain.VoiceProfile{}, nil
		}
		return domain.VoiceProfile{}, domain.Wrap(domain.ErrMissingKnownProfile, "profile", "require_known",
			fmt.Sprintf("known speaker profile %q not found in %s", knownName, s.dir), nil)
	}
	return profile, nil
}

func canonicalKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalize returns a unit-L2-norm copy of v, or v unchanged if its norm is
// zero (an empty or all-zero centroid, which Load should never produce from
// a well-formed enrollment file but which must not divide by zero here).
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
