package embed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ingestpipe/internal/domain"
)

type fakeModel struct {
	dim   int
	calls [][]string
}

func (f *fakeModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 3
		v[1] = 4
		out[i] = v
	}
	return out, nil
}

func (f *fakeModel) Dimension() int { return f.dim }

func TestAcquireIsLazyOnceAndResettable(t *testing.T) {
	ResetForTest()
	calls := 0
	SetLoader(func() (Model, error) {
		calls++
		return &fakeModel{dim: 4}, nil
	})

	if _, err := Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected loader called exactly once, got %d", calls)
	}

	ResetForTest()
	SetLoader(func() (Model, error) { calls++; return &fakeModel{dim: 4}, nil })
	if _, err := Acquire(); err != nil {
		t.Fatalf("Acquire after reset: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected loader called again after reset, got %d", calls)
	}
}

func TestAcquireWithoutLoaderFails(t *testing.T) {
	ResetForTest()
	if _, err := Acquire(); !errors.Is(err, errNoLoaderConfigured) {
		t.Fatalf("expected errNoLoaderConfigured, got %v", err)
	}
	ResetForTest()
}

func TestEmbedSegmentsNormalisesVectors(t *testing.T) {
	model := &fakeModel{dim: 2}
	svc := NewService(model, &sync.Mutex{}, 10, nil)
	segments := []domain.TranscriptSegment{{Text: "hello", SpeakerLabel: domain.KnownSpeaker("primary")}}
	out, err := svc.EmbedSegments(context.Background(), segments, Policy{})
	if err != nil {
		t.Fatalf("EmbedSegments: %v", err)
	}
	norm := out[0].Embedding[0]*out[0].Embedding[0] + out[0].Embedding[1]*out[0].Embedding[1]
	if norm < 0.999 || norm > 1.001 {
		t.Fatalf("expected unit-norm embedding, got squared norm %v", norm)
	}
}

func TestEmbedSegmentsSkipsNonKnownUnderKnownOnlyPolicy(t *testing.T) {
	model := &fakeModel{dim: 2}
	svc := NewService(model, &sync.Mutex{}, 10, nil)
	segments := []domain.TranscriptSegment{
		{Text: "known speaker line", SpeakerLabel: domain.KnownSpeaker("primary")},
		{Text: "guest line", SpeakerLabel: domain.GuestSpeaker()},
	}
	out, err := svc.EmbedSegments(context.Background(), segments, Policy{KnownOnly: true, KnownName: "primary"})
	if err != nil {
		t.Fatalf("EmbedSegments: %v", err)
	}
	if out[0].Embedding == nil {
		t.Fatalf("expected known-speaker segment to be embedded")
	}
	if out[1].Embedding != nil {
		t.Fatalf("expected guest segment to keep a nil embedding under known-only policy")
	}
	if len(model.calls) != 1 || len(model.calls[0]) != 1 {
		t.Fatalf("expected model called with exactly the one eligible text, got %+v", model.calls)
	}
}

func TestEmbedSegmentsBatchesByTextCount(t *testing.T) {
	model := &fakeModel{dim: 2}
	svc := NewService(model, &sync.Mutex{}, 2, nil)
	segments := make([]domain.TranscriptSegment, 5)
	for i := range segments {
		segments[i] = domain.TranscriptSegment{Text: "line", SpeakerLabel: domain.KnownSpeaker("primary")}
	}
	_, err := svc.EmbedSegments(context.Background(), segments, Policy{})
	if err != nil {
		t.Fatalf("EmbedSegments: %v", err)
	}
	if len(model.calls) != 3 {
		t.Fatalf("expected 3 batches of size <=2 for 5 texts, got %d calls", len(model.calls))
	}
}

func TestLoadRerankerWithFallbackOnOOM(t *testing.T) {
	attempted := []string{}
	load := func(ctx context.Context, variant string) (Reranker, error) {
		attempted = append(attempted, variant)
		if variant == "large" {
			return nil, errors.New("CUDA out of memory")
		}
		return nil, nil
	}
	_, used, err := LoadRerankerWithFallback(context.Background(), RerankerVariants{"large", "small"}, load)
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if used != "small" {
		t.Fatalf("expected fallback to small variant, got %q", used)
	}
	if len(attempted) != 2 {
		t.Fatalf("expected both variants attempted, got %v", attempted)
	}
}

func TestLoadRerankerWithFallbackPropagatesNonOOMError(t *testing.T) {
	load := func(ctx context.Context, variant string) (Reranker, error) {
		return nil, errors.New("config file not found")
	}
	_, _, err := LoadRerankerWithFallback(context.Background(), RerankerVariants{"large", "small"}, load)
	if err == nil {
		t.Fatalf("expected non-OOM error to propagate without trying further variants")
	}
}
