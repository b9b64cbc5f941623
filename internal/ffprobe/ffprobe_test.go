package ffprobe

import "testing"

func TestAudioStreamCount(t *testing.T) {
	r := Result{Streams: []Stream{
		{CodecType: "video"},
		{CodecType: "audio"},
		{CodecType: "AUDIO"},
	}}
	if got := r.AudioStreamCount(); got != 2 {
		t.Fatalf("expected 2 audio streams, got %d", got)
	}
}

func TestDurationSecondsParsesFormat(t *testing.T) {
	r := Result{Format: Format{Duration: "123.456"}}
	if got := r.DurationSeconds(); got != 123.456 {
		t.Fatalf("expected 123.456, got %v", got)
	}
}

func TestSizeBytesHandlesEmpty(t *testing.T) {
	r := Result{}
	if got := r.SizeBytes(); got != 0 {
		t.Fatalf("expected 0 for empty size, got %d", got)
	}
}
