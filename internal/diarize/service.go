// Package diarize implements the Diarization Engine (C4): exclusive
// (non-overlapping) speaker-turn detection, with a conversational-marker
// heuristic for speaker-count hints and a single-turn fallback on failure.
package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ingestpipe/internal/domain"
)

// Config controls the diarization subprocess invocation.
type Config struct {
	PythonBinary string
	FFmpegBinary string
	WorkDir      string

	ModelKey              string
	ClusteringThreshold   float64
	MinSpeechOnS          float64
	MinSpeechOffS         float64
}

// Hints are the optional speaker-count bounds the caller (or the
// conversational heuristic) supplies.
type Hints struct {
	MinSpeakers *int
	MaxSpeakers *int
}

// Service drives the subprocess-based diarization pipeline.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService constructs a diarization engine with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.PythonBinary == "" {
		cfg.PythonBinary = "uvx"
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner overrides the subprocess execution seam (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	return runSubprocess(ctx, name, args...)
}

// Diarize implements the C4 contract. It never returns an error: any
// internal failure is logged by the caller (via the returned degraded bool)
// and answered with a single fallback turn spanning the whole file.
func (s *Service) Diarize(ctx context.Context, audio domain.AudioArtifact, hints Hints) ([]domain.DiarizationTurn, bool) {
	workDir := s.cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(audio.Path)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fallbackTurn(audio.DurationS), true
	}

	normalizedPath := filepath.Join(workDir, "diarize_input.wav")
	if err := s.run(ctx, s.cfg.FFmpegBinary, normalizeArgs(audio.Path, normalizedPath)...); err != nil {
		return fallbackTurn(audio.DurationS), true
	}

	jsonPath := filepath.Join(workDir, "diarize_output.json")
	args := buildDiarizeArgs(normalizedPath, jsonPath, s.cfg, hints)
	if err := s.run(ctx, s.cfg.PythonBinary, args...); err != nil {
		return fallbackTurn(audio.DurationS), true
	}

	turns, err := loadTurns(jsonPath)
	if err != nil || len(turns) == 0 {
		return fallbackTurn(audio.DurationS), true
	}
	return turns, false
}

// ResolveHints applies the spec's conversational-marker auto-heuristic: if
// the caller did not already pin both bounds, and the first 60 seconds of
// ASR text looks conversational, set min=max=2.
func ResolveHints(explicit Hints, firstMinuteText string) Hints {
	if explicit.MinSpeakers != nil && explicit.MaxSpeakers != nil {
		return explicit
	}
	if LooksConversational(firstMinuteText) {
		two := 2
		return Hints{MinSpeakers: &two, MaxSpeakers: &two}
	}
	return explicit
}

func fallbackTurn(durationS float64) []domain.DiarizationTurn {
	return []domain.DiarizationTurn{{StartS: 0, EndS: durationS, ClusterID: 0}}
}

type wireTurn struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	ClusterID int     `json:"cluster_id"`
}

func loadTurns(jsonPath string) ([]domain.DiarizationTurn, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var wireTurns []wireTurn
	if err := json.Unmarshal(data, &wireTurns); err != nil {
		return nil, fmt.Errorf("parse diarization output: %w", err)
	}
	turns := make([]domain.DiarizationTurn, 0, len(wireTurns))
	for _, t := range wireTurns {
		turns = append(turns, domain.DiarizationTurn{StartS: t.Start, EndS: t.End, ClusterID: t.ClusterID})
	}
	return turns, nil
}

func buildDiarizeArgs(source, outputPath string, cfg Config, hints Hints) []string {
	args := []string{
		"diarize",
		source,
		"--output", outputPath,
		"--model", cfg.ModelKey,
	}
	if cfg.ClusteringThreshold > 0 {
		args = append(args, "--clustering_threshold", fmt.Sprintf("%.3f", cfg.ClusteringThreshold))
	}
	if cfg.MinSpeechOnS > 0 {
		args = append(args, "--min_speech_on", fmt.Sprintf("%.3f", cfg.MinSpeechOnS))
	}
	if cfg.MinSpeechOffS > 0 {
		args = append(args, "--min_speech_off", fmt.Sprintf("%.3f", cfg.MinSpeechOffS))
	}
	if hints.MinSpeakers != nil {
		args = append(args, "--min_speakers", fmt.Sprint(*hints.MinSpeakers))
	}
	if hints.MaxSpeakers != nil {
		args = append(args, "--max_speakers", fmt.Sprint(*hints.MaxSpeakers))
	}
	return args
}

