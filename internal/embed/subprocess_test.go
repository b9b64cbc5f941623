package embed

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"ingestpipe/internal/speaker"
)

func TestSubprocessModelEmbedWritesRequestAndParsesResponse(t *testing.T) {
	dir := t.TempDir()
	m := NewSubprocessModel(SubprocessModelConfig{WorkDir: dir, Dimensions: 3})

	m.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		reqPath := args[2]
		outPath := args[4]

		raw, err := os.ReadFile(reqPath)
		if err != nil {
			t.Fatalf("read request file: %v", err)
		}
		var req embedRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		vectors := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			vectors[i] = []float32{float32(i), 0.5, 0.25}
		}
		payload, _ := json.Marshal(embedResponse{Vectors: vectors})
		return os.WriteFile(outPath, payload, 0o644)
	})

	vectors, err := m.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 1 {
		t.Fatalf("unexpected vectors: %+v", vectors)
	}
	if m.Dimension() != 3 {
		t.Fatalf("expected dimension 3, got %d", m.Dimension())
	}
}

func TestSubprocessModelEmbedEmptyInputIsNoop(t *testing.T) {
	m := NewSubprocessModel(SubprocessModelConfig{})
	m.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("runner should not be invoked for empty input")
		return nil
	})
	vectors, err := m.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil/nil for empty input, got %v %v", vectors, err)
	}
}

func TestSubprocessModelEmbedRejectsMismatchedVectorCount(t *testing.T) {
	dir := t.TempDir()
	m := NewSubprocessModel(SubprocessModelConfig{WorkDir: dir})
	m.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		outPath := args[4]
		payload, _ := json.Marshal(embedResponse{Vectors: [][]float32{{0.1}}})
		return os.WriteFile(outPath, payload, 0o644)
	})

	if _, err := m.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on vector/text count mismatch")
	}
}

func TestVoiceEmbedderEmbedWritesWindowsAndParsesResponse(t *testing.T) {
	dir := t.TempDir()
	v := NewVoiceEmbedder(VoiceEmbedderConfig{WorkDir: dir})

	v.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		reqPath := args[2]
		outPath := args[4]

		raw, err := os.ReadFile(reqPath)
		if err != nil {
			t.Fatalf("read request file: %v", err)
		}
		var req voiceWindowRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Windows) != 4 {
			t.Fatalf("expected 4 flattened window bounds, got %d", len(req.Windows))
		}
		vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
		payload, _ := json.Marshal(voiceWindowResponse{Vectors: vectors})
		return os.WriteFile(outPath, payload, 0o644)
	})

	windows := []speaker.Window{{StartS: 0, EndS: 5}, {StartS: 5, EndS: 10}}
	vectors, err := v.Embed(context.Background(), "/tmp/audio.wav", windows)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][1] != 0.2 {
		t.Fatalf("unexpected vectors: %+v", vectors)
	}
}

func TestVoiceEmbedderEmbedEmptyWindowsIsNoop(t *testing.T) {
	v := NewVoiceEmbedder(VoiceEmbedderConfig{})
	v.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("runner should not be invoked for empty windows")
		return nil
	})
	vectors, err := v.Embed(context.Background(), "/tmp/audio.wav", nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil/nil for empty windows, got %v %v", vectors, err)
	}
}
