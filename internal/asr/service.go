// Package asr implements the ASR Engine (C3): two-stage transcription with
// word-level timestamps, per-segment quality metrics, and refinement of
// low-quality spans with a stronger model.
package asr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ingestpipe/internal/domain"
)

// Result is the C3 contract's return shape.
type Result struct {
	Segments        []domain.ASRSegment
	Words           []domain.Word
	Language        string
	AudioDurationS  float64
	ProcessingTimeS float64
}

// Service drives the subprocess-based transcription pipeline.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService constructs an ASR engine with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.PythonBinary == "" {
		cfg.PythonBinary = "uvx"
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.LowLogprobThreshold == 0 {
		cfg.LowLogprobThreshold = DefaultLowLogprobThreshold
	}
	if cfg.HighCompressionRatio == 0 {
		cfg.HighCompressionRatio = DefaultHighCompressionRatio
	}
	if cfg.HighNoSpeechProb == 0 {
		cfg.HighNoSpeechProb = DefaultHighNoSpeechProb
	}
	if cfg.RefinementMergeGapS == 0 {
		cfg.RefinementMergeGapS = DefaultRefinementMergeGapS
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

// Transcribe implements the C3 contract: transcribe(audio) -> {segments,
// words, language, audio_duration_s, processing_time_s}. If stage 1 fails,
// it returns an error wrapping domain.ErrASRFailed; the orchestrator treats
// the video as errored. If stage 2 fails for a span, the original segments
// for that span are kept and the failure is logged by the caller as a
// warning (the bool return reports whether any span's refinement fell
// back).
func (s *Service) Transcribe(ctx context.Context, audio domain.AudioArtifact, durationMinutes float64, isInterview bool) (Result, bool, error) {
	start := time.Now()

	workDir := s.cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(audio.Path)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, false, domain.Wrap(domain.ErrASRFailed, "asr", "stage1", "prepare work dir", err)
	}

	preset := RoutePreset(durationMinutes, isInterview, s.cfg.Router)
	segments, words, language, err := s.transcribeOnce(ctx, audio.Path, workDir, preset.ModelKey, preset.ComputeType, preset.BeamSize, preset.Temperatures)
	if err != nil {
		return Result{}, false, domain.Wrap(domain.ErrASRFailed, "asr", "stage1", "transcription failed", err)
	}

	refined, degraded := s.refine(ctx, audio.Path, workDir, segments)

	result := Result{
		Segments:        refined,
		Words:           words,
		Language:        language,
		AudioDurationS:  audio.DurationS,
		ProcessingTimeS: time.Since(start).Seconds(),
	}
	return result, degraded, nil
}

func (s *Service) transcribeOnce(ctx context.Context, source, workDir, modelKey, computeType string, beam int, temps []float64) ([]domain.ASRSegment, []domain.Word, string, error) {
	jsonPath := filepath.Join(workDir, baseNameNoExt(source)+".json")
	args := buildTranscribeArgs(source, workDir, modelKey, computeType, beam, temps, s.cfg.Language, s.cfg.DomainPrompt)
	if err := s.run(ctx, s.cfg.PythonBinary, args...); err != nil {
		return nil, nil, "", err
	}
	payload, err := loadWirePayload(jsonPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load transcription output: %w", err)
	}
	segments, words := payload.toDomain()
	return segments, words, payload.Language, nil
}

// refine runs stage 2: flagging, span merging, re-transcription, and text
// absorption. It never fails the whole transcription; a span whose
// re-transcription errors keeps its original segments and sets the
// returned bool to report the degradation to the caller's logs.
func (s *Service) refine(ctx context.Context, source, workDir string, segments []domain.ASRSegment) ([]domain.ASRSegment, bool) {
	spans := mergeFlaggedSpans(flagSegments(segments, s.cfg.LowLogprobThreshold, s.cfg.HighCompressionRatio, s.cfg.HighNoSpeechProb), segments, s.cfg.RefinementMergeGapS)
	if len(spans) == 0 {
		return segments, false
	}

	out := make([]domain.ASRSegment, len(segments))
	copy(out, segments)
	for _, span := range spans {
		for _, idx := range span.segmentIdxs {
			out[idx].NeedsRefinement = true
		}
	}
	degraded := false

	for spanIdx, span := range spans {
		spanPath := filepath.Join(workDir, fmt.Sprintf("refine_%d.wav", spanIdx))
		if err := extractSpan(ctx, s.cfg.FFmpegBinary, source, span.startS, span.endS, spanPath); err != nil {
			degraded = true
			continue
		}
		refinedSegments, _, _, err := s.transcribeOnce(ctx, spanPath, workDir, s.cfg.RefineModelKey, "", s.cfg.RefineBeamSize, s.cfg.RefineTemperatures)
		if err != nil {
			degraded = true
			continue
		}
		absorbSpan(out, span, refinedSegments)
	}
	return out, degraded
}

type flaggedSpan struct {
	startS      float64
	endS        float64
	segmentIdxs []int
}

// flagSegments returns the indices of segments whose quality falls outside
// the refinement thresholds.
func flagSegments(segments []domain.ASRSegment, lowLogprob, highCompression, highNoSpeech float64) []int {
	var flagged []int
	for i, seg := range segments {
		if seg.Quality.AvgLogprob != nil && *seg.Quality.AvgLogprob <= lowLogprob {
			flagged = append(flagged, i)
			continue
		}
		if seg.Quality.CompressionRatio != nil && *seg.Quality.CompressionRatio >= highCompression {
			flagged = append(flagged, i)
			continue
		}
		if seg.Quality.NoSpeechProb != nil && *seg.Quality.NoSpeechProb >= highNoSpeech {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// mergeFlaggedSpans merges adjacent flagged segment indices within gapS of
// each other into refinement spans.
func mergeFlaggedSpans(flaggedIdxs []int, segments []domain.ASRSegment, gapS float64) []flaggedSpan {
	if len(flaggedIdxs) == 0 {
		return nil
	}
	sort.Ints(flaggedIdxs)

	var spans []flaggedSpan
	current := flaggedSpan{
		startS:      segments[flaggedIdxs[0]].StartS,
		endS:        segments[flaggedIdxs[0]].EndS,
		segmentIdxs: []int{flaggedIdxs[0]},
	}
	for _, idx := range flaggedIdxs[1:] {
		seg := segments[idx]
		if seg.StartS-current.endS <= gapS {
			current.endS = seg.EndS
			current.segmentIdxs = append(current.segmentIdxs, idx)
			continue
		}
		spans = append(spans, current)
		current = flaggedSpan{startS: seg.StartS, endS: seg.EndS, segmentIdxs: []int{idx}}
	}
	spans = append(spans, current)
	return spans
}

// absorbSpan folds a span's re-transcribed segments into the first original
// segment's slot and blanks the rest, marking them merged. The refined
// segment carries re_asr=true and the span's absolute timing (refined text
// is offset-adjusted from the sub-audio's own zero point).
func absorbSpan(out []domain.ASRSegment, span flaggedSpan, refined []domain.ASRSegment) {
	if len(span.segmentIdxs) == 0 {
		return
	}
	firstIdx := span.segmentIdxs[0]

	var text string
	var words []domain.Word
	for _, seg := range refined {
		if text != "" {
			text += " "
		}
		text += seg.Text
		for _, w := range seg.Words {
			words = append(words, domain.Word{
				StartS: span.startS + w.StartS,
				EndS:   span.startS + w.EndS,
				Text:   w.Text,
			})
		}
	}

	out[firstIdx] = domain.ASRSegment{
		StartS:          span.startS,
		EndS:            span.endS,
		Text:            text,
		Words:           words,
		ReASR:           true,
		NeedsRefinement: true,
	}
	for _, idx := range span.segmentIdxs[1:] {
		out[idx] = domain.ASRSegment{
			StartS:          out[idx].StartS,
			EndS:            out[idx].EndS,
			Text:            "",
			ReASR:           true,
			NeedsRefinement: true,
		}
	}
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
