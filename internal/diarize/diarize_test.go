package diarize

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ingestpipe/internal/domain"
)

func TestLooksConversationalDetectsInterview(t *testing.T) {
	text := "Hey, how are you doing today? Are you ready to get started? Yeah, exactly, I'm so ready. Okay, let's go."
	if !LooksConversational(text) {
		t.Fatalf("expected conversational heuristic to fire on interview-like text")
	}
}

func TestLooksConversationalRejectsMonologue(t *testing.T) {
	text := "Today we are going to talk about the history of the Roman empire and its lasting influence on modern law."
	if LooksConversational(text) {
		t.Fatalf("expected monologue text not to trigger the conversational heuristic")
	}
}

func TestResolveHintsSetsTwoSpeakersWhenConversational(t *testing.T) {
	hints := ResolveHints(Hints{}, "Hey, are you ready? Yeah, totally, let's go. You sure? Yep, okay.")
	if hints.MinSpeakers == nil || *hints.MinSpeakers != 2 {
		t.Fatalf("expected min_speakers=2, got %+v", hints.MinSpeakers)
	}
	if hints.MaxSpeakers == nil || *hints.MaxSpeakers != 2 {
		t.Fatalf("expected max_speakers=2, got %+v", hints.MaxSpeakers)
	}
}

func TestResolveHintsRespectsExplicitBounds(t *testing.T) {
	one := 1
	explicit := Hints{MinSpeakers: &one, MaxSpeakers: &one}
	got := ResolveHints(explicit, "Hey, are you ready? Yeah, totally, let's go.")
	if *got.MinSpeakers != 1 || *got.MaxSpeakers != 1 {
		t.Fatalf("expected explicit hints preserved, got %+v", got)
	}
}

func TestDiarizeFallsBackOnSubprocessFailure(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("model crashed")
	})

	turns, degraded := svc.Diarize(context.Background(), domain.AudioArtifact{Path: "/tmp/x.wav", DurationS: 120}, Hints{})
	if !degraded {
		t.Fatalf("expected degraded=true on subprocess failure")
	}
	if len(turns) != 1 || turns[0].ClusterID != 0 || turns[0].EndS != 120 {
		t.Fatalf("expected single fallback turn spanning full duration, got %+v", turns)
	}
}

func TestDiarizeParsesSuccessfulOutput(t *testing.T) {
	workDir := t.TempDir()
	svc := NewService(Config{WorkDir: workDir})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		turns := []wireTurn{
			{Start: 0, End: 10, ClusterID: 0},
			{Start: 10, End: 20, ClusterID: 1},
		}
		raw, _ := json.Marshal(turns)
		return os.WriteFile(filepath.Join(workDir, "diarize_output.json"), raw, 0o644)
	})

	turns, degraded := svc.Diarize(context.Background(), domain.AudioArtifact{Path: "/tmp/x.wav", DurationS: 20}, Hints{})
	if degraded {
		t.Fatalf("expected no degradation on successful parse")
	}
	if len(turns) != 2 || turns[1].ClusterID != 1 {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}
