package asr

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ingestpipe/internal/domain"
)

func TestRoutePresetByDuration(t *testing.T) {
	cfg := DefaultRouterConfig("base", "cuda", "float16", 5, []float64{0}, 30)
	if got := RoutePreset(10, false, cfg); got.Name != "fast short" {
		t.Fatalf("expected fast short for 10min, got %s", got.Name)
	}
	if got := RoutePreset(45, true, cfg); got.Name != "interview" {
		t.Fatalf("expected interview, got %s", got.Name)
	}
	if got := RoutePreset(90, false, cfg); got.Name != "long monologue" {
		t.Fatalf("expected long monologue, got %s", got.Name)
	}
}

func negPtr(v float64) *float64 { return &v }

func TestFlagSegmentsThresholds(t *testing.T) {
	segments := []domain.ASRSegment{
		{Quality: domain.ASRQuality{AvgLogprob: negPtr(-0.1)}},              // fine
		{Quality: domain.ASRQuality{AvgLogprob: negPtr(-0.4)}},              // flagged: low logprob
		{Quality: domain.ASRQuality{CompressionRatio: negPtr(2.5)}},         // flagged: high compression
		{Quality: domain.ASRQuality{NoSpeechProb: negPtr(0.9)}},             // flagged: high no-speech
	}
	flagged := flagSegments(segments, DefaultLowLogprobThreshold, DefaultHighCompressionRatio, DefaultHighNoSpeechProb)
	if len(flagged) != 3 {
		t.Fatalf("expected 3 flagged segments, got %v", flagged)
	}
	want := []int{1, 2, 3}
	for i, idx := range flagged {
		if idx != want[i] {
			t.Fatalf("expected flagged %v, got %v", want, flagged)
		}
	}
}

func TestMergeFlaggedSpansWithinGap(t *testing.T) {
	segments := []domain.ASRSegment{
		{StartS: 0, EndS: 5},
		{StartS: 5, EndS: 10},
		{StartS: 11.5, EndS: 15}, // gap 1.5s from previous, within 2.0s merge window
		{StartS: 40, EndS: 45},   // far away: separate span
	}
	spans := mergeFlaggedSpans([]int{0, 1, 2, 3}, segments, DefaultRefinementMergeGapS)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].startS != 0 || spans[0].endS != 15 {
		t.Fatalf("expected first span [0,15], got [%v,%v]", spans[0].startS, spans[0].endS)
	}
	if spans[1].startS != 40 || spans[1].endS != 45 {
		t.Fatalf("expected second span [40,45], got [%v,%v]", spans[1].startS, spans[1].endS)
	}
}

func TestAbsorbSpanBlanksSubsequentOriginals(t *testing.T) {
	out := []domain.ASRSegment{
		{StartS: 0, EndS: 5, Text: "garbled one"},
		{StartS: 5, EndS: 10, Text: "garbled two"},
	}
	span := flaggedSpan{startS: 0, endS: 10, segmentIdxs: []int{0, 1}}
	refined := []domain.ASRSegment{
		{Text: "clean refined text", Words: []domain.Word{{StartS: 0.1, EndS: 0.4, Text: "clean"}}},
	}
	absorbSpan(out, span, refined)

	if !out[0].ReASR || out[0].Text != "clean refined text" {
		t.Fatalf("expected first segment to absorb refined text, got %+v", out[0])
	}
	if out[0].Words[0].StartS != 0.1 {
		t.Fatalf("expected word timing offset by span start, got %v", out[0].Words[0].StartS)
	}
	if out[1].Text != "" || !out[1].ReASR {
		t.Fatalf("expected subsequent original blanked and marked merged, got %+v", out[1])
	}
}

func TestTranscribeStage1FailureWrapsASRFailed(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("subprocess exploded")
	})

	_, _, err := svc.Transcribe(context.Background(), domain.AudioArtifact{Path: "/tmp/does-not-matter.wav", DurationS: 60}, 10, false)
	if !errors.Is(err, domain.ErrASRFailed) {
		t.Fatalf("expected ErrASRFailed, got %v", err)
	}
}

func TestTranscribeSuccessReadsJSONSidecar(t *testing.T) {
	workDir := t.TempDir()
	audioPath := filepath.Join(workDir, "clip.wav")
	if err := os.WriteFile(audioPath, []byte("not-real-audio"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	svc := NewService(Config{WorkDir: workDir})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		payload := wirePayload{
			Language: "en",
			Segments: []wireSegment{
				{Text: "hello there", Start: 0, End: 2, Words: []wireWord{{Word: "hello", Start: 0, End: 1}}},
			},
		}
		raw, _ := json.Marshal(payload)
		return os.WriteFile(filepath.Join(workDir, "clip.json"), raw, 0o644)
	})

	result, degraded, err := svc.Transcribe(context.Background(), domain.AudioArtifact{Path: audioPath, DurationS: 2}, 10, false)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if degraded {
		t.Fatalf("expected no degradation when nothing is flagged")
	}
	if len(result.Segments) != 1 || result.Segments[0].Text != "hello there" {
		t.Fatalf("unexpected segments: %+v", result.Segments)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %q", result.Language)
	}
}
