package speaker

import (
	"context"
	"errors"
	"testing"

	"ingestpipe/internal/domain"
)

type stubEmbedder struct {
	vectors  [][]float32
	err      error
	byWindow func(w Window) []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, audioPath string, windows []Window) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(windows))
	for i, w := range windows {
		if s.byWindow != nil {
			out[i] = s.byWindow(w)
			continue
		}
		if i < len(s.vectors) {
			out[i] = s.vectors[i]
		} else {
			out[i] = s.vectors[len(s.vectors)-1]
		}
	}
	return out, nil
}

func TestShortClusterIsUnknown(t *testing.T) {
	turns := []domain.DiarizationTurn{{StartS: 0, EndS: 1.5, ClusterID: 0}}
	svc := NewService(&stubEmbedder{vectors: [][]float32{{1, 0}}}, DefaultConfig("primary"))
	segments, _, degraded := svc.Identify(context.Background(), "/tmp/a.wav", turns, nil)
	if degraded {
		t.Fatalf("short cluster should not be reported as degraded")
	}
	if len(segments) != 1 || segments[0].Label.Kind() != domain.SpeakerUnknown {
		t.Fatalf("expected single UNKNOWN segment, got %+v", segments)
	}
}

func TestEmbedderFailureDegradesToUnknown(t *testing.T) {
	turns := []domain.DiarizationTurn{{StartS: 0, EndS: 10, ClusterID: 0}}
	svc := NewService(&stubEmbedder{err: errors.New("gpu oom")}, DefaultConfig("primary"))
	segments, _, degraded := svc.Identify(context.Background(), "/tmp/a.wav", turns, nil)
	if !degraded {
		t.Fatalf("expected degraded=true on embed failure")
	}
	if len(segments) != 1 || segments[0].Label.Kind() != domain.SpeakerUnknown {
		t.Fatalf("expected UNKNOWN fallback, got %+v", segments)
	}
}

func TestWholeClusterAttributesToKnownProfile(t *testing.T) {
	turns := []domain.DiarizationTurn{{StartS: 0, EndS: 12, ClusterID: 0}}
	profiles := []domain.VoiceProfile{{Name: "primary", Centroid: []float32{1, 0}, Threshold: 0.6}}
	svc := NewService(&stubEmbedder{vectors: [][]float32{{1, 0}, {1, 0}, {1, 0}}}, DefaultConfig("primary"))
	segments, _, degraded := svc.Identify(context.Background(), "/tmp/a.wav", turns, profiles)
	if degraded {
		t.Fatalf("unexpected degradation")
	}
	if len(segments) != 1 || !segments[0].Label.IsKnown() || segments[0].Label.Name() != "primary" {
		t.Fatalf("expected segment attributed to primary, got %+v", segments)
	}
}

func TestAttributeRejectsBelowThreshold(t *testing.T) {
	profiles := []domain.VoiceProfile{{Name: "primary", Centroid: []float32{1, 0}, Threshold: 0.9}}
	label, _, _ := attribute([]float32{0.5, 0.866}, profiles, 1.0, 0.05) // cos sim = 0.5
	if label.Kind() != domain.SpeakerUnknown {
		t.Fatalf("expected UNKNOWN below threshold, got %v", label)
	}
}

func TestOverMergeSignalTriggersPerSegmentReid(t *testing.T) {
	// A short known-matching turn followed by a long turn that does not
	// match: the sampled windows land mostly in the second turn, producing
	// high variance/range against the known centroid across the mix.
	turns := []domain.DiarizationTurn{
		{StartS: 0, EndS: 3, ClusterID: 0},
		{StartS: 3, EndS: 80, ClusterID: 0},
	}
	profiles := []domain.VoiceProfile{{Name: "primary", Centroid: []float32{1, 0}, Threshold: 0.6}}
	embedder := &stubEmbedder{byWindow: func(w Window) []float32 {
		if w.StartS < 3 {
			return []float32{1, 0}
		}
		return []float32{0, 1}
	}}
	svc := NewService(embedder, DefaultConfig("primary"))
	segments, _, degraded := svc.Identify(context.Background(), "/tmp/a.wav", turns, profiles)
	if degraded {
		t.Fatalf("unexpected degradation")
	}
	if len(segments) < 2 {
		t.Fatalf("expected per-segment re-identification to produce multiple chunks, got %d", len(segments))
	}
	foundKnown, foundGuest := false, false
	for _, seg := range segments {
		if seg.Label.IsKnown() {
			foundKnown = true
		}
		if seg.Label.Kind() == domain.SpeakerGuest {
			foundGuest = true
		}
	}
	if !foundKnown || !foundGuest {
		t.Fatalf("expected both a known and a guest chunk after split, got %+v", segments)
	}
}

func TestSmoothingFlipsIsolatedShortSegment(t *testing.T) {
	segments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 50, Label: domain.KnownSpeaker("primary")},
		{StartS: 50, EndS: 55, Label: domain.GuestSpeaker()},
		{StartS: 55, EndS: 100, Label: domain.KnownSpeaker("primary")},
	}
	flips := smooth(segments, 60)
	if len(flips) != 1 {
		t.Fatalf("expected exactly one flip, got %d", len(flips))
	}
	if !segments[1].Label.IsKnown() {
		t.Fatalf("expected isolated segment to flip to primary, got %v", segments[1].Label)
	}
}

func TestSmoothingLeavesLongIsolatedSegment(t *testing.T) {
	segments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 50, Label: domain.KnownSpeaker("primary")},
		{StartS: 50, EndS: 200, Label: domain.GuestSpeaker()},
		{StartS: 200, EndS: 250, Label: domain.KnownSpeaker("primary")},
	}
	flips := smooth(segments, 60)
	if len(flips) != 0 {
		t.Fatalf("expected no flips for a segment over the duration cap, got %d", len(flips))
	}
}

func TestSampleWindowsSplitsOverMergedSingleTurn(t *testing.T) {
	windows := sampleWindows([]turnSpan{{startS: 0, endS: 600}})
	if len(windows) != 10 {
		t.Fatalf("expected 10 uniform chunks for an over-merged single turn, got %d", len(windows))
	}
	if windows[0].StartS != 0 || windows[len(windows)-1].EndS != 600 {
		t.Fatalf("expected chunks spanning the full duration, got %+v", windows)
	}
}
