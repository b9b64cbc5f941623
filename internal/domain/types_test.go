package domain

import (
	"errors"
	"testing"
)

func TestSpeakerLabelVariants(t *testing.T) {
	known := KnownSpeaker("Chaffee")
	if !known.IsKnown() || known.Name() != "Chaffee" || known.String() != "Chaffee" {
		t.Fatalf("known label mismatch: %+v", known)
	}
	guest := GuestSpeaker()
	if guest.IsKnown() || guest.String() != "GUEST" {
		t.Fatalf("guest label mismatch: %+v", guest)
	}
	var zero SpeakerLabel
	if zero.Kind() != SpeakerUnknown || zero.String() != "UNKNOWN" {
		t.Fatalf("zero value should be Unknown, got %+v", zero)
	}
}

func TestSpeakerLabelEqual(t *testing.T) {
	a := KnownSpeaker("Guest A")
	b := KnownSpeaker("Guest A")
	c := KnownSpeaker("Guest B")
	if !a.Equal(b) {
		t.Fatalf("expected equal known labels")
	}
	if a.Equal(c) {
		t.Fatalf("expected distinct known labels to differ")
	}
	if GuestSpeaker().Equal(UnknownSpeaker()) {
		t.Fatalf("guest and unknown must not compare equal")
	}
}

func TestClusterEvidenceDiscrimination(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	embEvidence := NewEmbeddingEvidence(vec)
	if embEvidence.IsOverMergeMarker() {
		t.Fatalf("embedding evidence misreported as marker")
	}
	got, ok := embEvidence.Embedding()
	if !ok || len(got) != 3 {
		t.Fatalf("expected embedding to round-trip, got %v ok=%v", got, ok)
	}

	marker := NewOverMergeMarker()
	if !marker.IsOverMergeMarker() {
		t.Fatalf("expected marker evidence")
	}
	if _, ok := marker.Embedding(); ok {
		t.Fatalf("marker must never yield an embedding")
	}
}

func TestWrapAndClassify(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(ErrDownloadFailed, "acquire", "download", "yt-dlp failed", cause)
	var svc *ServiceError
	if !errors.As(err, &svc) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if svc.Kind != KindTerminal {
		t.Fatalf("expected terminal kind, got %v", svc.Kind)
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected errors.Is to match the marker")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to unwrap to cause")
	}
}

func TestStatCounterForTable(t *testing.T) {
	cases := map[error]string{
		ErrUnavailable:    "unavailable",
		ErrMembersOnly:    "members_only",
		ErrNoAudio:        "no_audio",
		ErrRateLimited:    "rate_limited",
		ErrDownloadFailed: "download_failed",
		ErrASRFailed:      "asr_failed",
		ErrPersistFailed:  "persist_failed",
	}
	for err, want := range cases {
		if got := StatCounterFor(err); got != want {
			t.Errorf("StatCounterFor(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestIngestionStatsIncError(t *testing.T) {
	var stats IngestionStats
	stats.IncError(Wrap(ErrNoAudio, "acquire", "validate", "no audio stream", nil))
	snap := stats.Snapshot()
	if snap.NoAudio != 1 {
		t.Fatalf("expected NoAudio=1, got %d", snap.NoAudio)
	}
	if snap.Errored != 1 {
		t.Fatalf("expected Errored=1, got %d", snap.Errored)
	}
}
