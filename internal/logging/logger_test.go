package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewConsoleHandlerWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("acquired audio", String(FieldVideoID, "abc123"), String(FieldStage, "acquiring"))

	out := buf.String()
	if !strings.Contains(out, "abc123 (acquiring)") {
		t.Fatalf("expected subject in output, got %q", out)
	}
	if !strings.Contains(out, "acquired audio") {
		t.Fatalf("expected message in output, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestContextFieldsRoundTrip(t *testing.T) {
	if fields := ContextFields(nil); fields != nil {
		t.Fatalf("expected nil fields for nil context, got %v", fields)
	}
}
