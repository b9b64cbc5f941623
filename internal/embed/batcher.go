package embed

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"ingestpipe/internal/domain"
)

const DefaultBatchSize = 256

// Policy controls which segments are actually sent to the model.
type Policy struct {
	// KnownOnly, when true, skips embedding any segment whose speaker is
	// not KnownName: those segments keep a nil embedding.
	KnownOnly bool
	KnownName string
	BatchSize int
}

// Service batches text embedding calls against the shared GPU-resident
// model, serialising its own model calls through gpuLock. ASR transcription
// does not take this lock.
type Service struct {
	model     Model
	gpuLock   *sync.Mutex
	batchSize int
	logger    *slog.Logger
}

// NewService constructs a batcher around an already-acquired model handle.
func NewService(model Model, gpuLock *sync.Mutex, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{model: model, gpuLock: gpuLock, batchSize: batchSize, logger: logger}
}

// EmbedSegments fills in Embedding for every eligible segment, batched by
// text count. Segments excluded by a known-only policy are returned with a
// nil embedding and are never sent to the model.
func (s *Service) EmbedSegments(ctx context.Context, segments []domain.TranscriptSegment, policy Policy) ([]domain.TranscriptSegment, error) {
	out := make([]domain.TranscriptSegment, len(segments))
	copy(out, segments)

	var eligibleIdx []int
	var texts []string
	for i, seg := range out {
		if policy.KnownOnly && !(seg.SpeakerLabel.IsKnown() && strings.EqualFold(seg.SpeakerLabel.Name(), policy.KnownName)) {
			continue
		}
		eligibleIdx = append(eligibleIdx, i)
		texts = append(texts, seg.Text)
	}

	batchSize := s.batchSize
	if policy.BatchSize > 0 {
		batchSize = policy.BatchSize
	}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchTexts := texts[start:end]

		vectors, err := s.embedBatch(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		for offset, vec := range vectors {
			out[eligibleIdx[start+offset]].Embedding = normalizeL2(vec)
		}
	}

	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	s.gpuLock.Lock()
	defer s.gpuLock.Unlock()

	start := time.Now()
	vectors, err := s.model.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	rate := float64(len(texts)) / elapsed.Seconds()
	s.logger.Info("embedding batch complete",
		slog.Int("texts", len(texts)),
		slog.Float64("wall_seconds", elapsed.Seconds()),
		slog.Float64("texts_per_second", rate),
	)
	return vectors, nil
}

func normalizeL2(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
