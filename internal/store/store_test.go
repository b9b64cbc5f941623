package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"ingestpipe/internal/domain"
)

func TestIVFFlatListCountClampsAndFloors(t *testing.T) {
	cases := []struct {
		rows int64
		want int
	}{
		{0, 50},
		{100, 50},
		{2500, 50},  // sqrt=50
		{10000, 100}, // sqrt=100, clamp at 100
		{1000000, 100},
		{-5, 50},
	}
	for _, c := range cases {
		if got := IVFFlatListCount(c.rows); got != c.want {
			t.Errorf("IVFFlatListCount(%d) = %d, want %d", c.rows, got, c.want)
		}
	}
}

func TestIsqrt(t *testing.T) {
	cases := map[int64]int{0: 0, 1: 1, 4: 2, 15: 3, 16: 4, 2500: 50, 9999: 99}
	for n, want := range cases {
		if got := isqrt(n); got != want {
			t.Errorf("isqrt(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestEmbeddingTableName(t *testing.T) {
	if got := embeddingTableName(384); got != "segment_embeddings_384" {
		t.Fatalf("unexpected table name: %s", got)
	}
}

func TestIsKnownMatch(t *testing.T) {
	known := domain.TranscriptSegment{SpeakerLabel: domain.KnownSpeaker("Chaffee")}
	guest := domain.TranscriptSegment{SpeakerLabel: domain.GuestSpeaker()}

	if !isKnownMatch(known, "chaffee") {
		t.Fatal("expected case-insensitive match against known speaker")
	}
	if isKnownMatch(guest, "chaffee") {
		t.Fatal("expected guest segment to never match a known name")
	}
	if isKnownMatch(known, "someone else") {
		t.Fatal("expected mismatched known name to not match")
	}
}

func TestPQTextArrayEscapesQuotes(t *testing.T) {
	if got := pqTextArray(nil); got != "{}" {
		t.Fatalf("expected {} for nil slice, got %q", got)
	}
	got := pqTextArray([]string{"plain", `has "quotes"`})
	want := `{"plain","has \"quotes\""}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMarshalJSONBDefaultsToEmptyObject(t *testing.T) {
	raw, err := marshalJSONB(nil)
	if err != nil {
		t.Fatalf("marshalJSONB: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected {}, got %s", raw)
	}

	raw, err = marshalJSONB(map[string]any{"channel": "mathlab"})
	if err != nil {
		t.Fatalf("marshalJSONB: %v", err)
	}
	if string(raw) != `{"channel":"mathlab"}` {
		t.Fatalf("unexpected json: %s", raw)
	}
}

func TestVectorLiteralDoesNotPanic(t *testing.T) {
	v := vectorLiteral([]float32{0.1, 0.2, 0.3})
	if v.Slice() == nil {
		t.Fatal("expected a non-nil underlying vector")
	}
}

type sqlStateError struct{ state string }

func (e sqlStateError) Error() string    { return "pg error: " + e.state }
func (e sqlStateError) SQLState() string { return e.state }

func TestIsRetryableMatchesKnownSQLStates(t *testing.T) {
	if !isRetryable(sqlStateError{"40001"}) {
		t.Fatal("expected serialization_failure to be retryable")
	}
	if !isRetryable(sqlStateError{"40P01"}) {
		t.Fatal("expected deadlock_detected to be retryable")
	}
	if isRetryable(sqlStateError{"23505"}) {
		t.Fatal("expected unique_violation to not be retryable")
	}
	if isRetryable(nil) {
		t.Fatal("expected nil error to not be retryable")
	}
}

func TestIsRetryableFallsBackToMessageMatching(t *testing.T) {
	if !isRetryable(errors.New("ERROR: deadlock detected")) {
		t.Fatal("expected message-based deadlock detection to be retryable")
	}
	if isRetryable(errors.New("ERROR: syntax error near SELECT")) {
		t.Fatal("expected unrelated error to not be retryable")
	}
}

func TestRetryOnTransientStopsAfterAttemptsExhausted(t *testing.T) {
	attempts := 0
	err := retryOnTransient(context.Background(), func() error {
		attempts++
		return sqlStateError{"40001"}
	})
	if err == nil {
		t.Fatal("expected final error to propagate")
	}
	if attempts != retryAttempts {
		t.Fatalf("expected %d attempts, got %d", retryAttempts, attempts)
	}
}

func TestRetryOnTransientDoesNotRetryNonTransientErrors(t *testing.T) {
	attempts := 0
	err := retryOnTransient(context.Background(), func() error {
		attempts++
		return errors.New("permanent failure")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if attempts != 1 {
		t.Fatalf("expected non-retryable error to stop after 1 attempt, got %d", attempts)
	}
}

func TestRetryOnTransientRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := retryOnTransient(ctx, func() error {
		attempts++
		return sqlStateError{"40001"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt before cancellation observed, got %d", attempts)
	}
}

func TestOpenRejectsEmptyDatabaseURL(t *testing.T) {
	_, err := Open(context.Background(), "", ModeDevelopment)
	if !errors.Is(err, domain.ErrMissingDatabaseURL) {
		t.Fatalf("expected ErrMissingDatabaseURL, got %v", err)
	}
}

func TestEnsureContextDefaultsToBackground(t *testing.T) {
	ctx := ensureContext(nil)
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	select {
	case <-ctx.Done():
		t.Fatal("expected background context to never be done")
	case <-time.After(time.Millisecond):
	}
}
