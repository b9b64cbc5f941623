package pipeline

import (
	"context"
	"database/sql"

	"ingestpipe/internal/asr"
	"ingestpipe/internal/diarize"
	"ingestpipe/internal/domain"
	"ingestpipe/internal/embed"
	"ingestpipe/internal/speaker"
	"ingestpipe/internal/store"
)

// Acquirer is the C2 contract the I/O worker pool drives. *acquire.Service
// satisfies this directly; tests substitute a fake to avoid shelling out to
// yt-dlp/ffmpeg/ffprobe.
type Acquirer interface {
	Acquire(ctx context.Context, videoID string) (domain.AudioArtifact, error)
}

// Transcriber is the C3 contract. *asr.Service satisfies this directly.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.AudioArtifact, durationMinutes float64, isInterview bool) (asr.Result, bool, error)
}

// Diarizer is the C4 contract. *diarize.Service satisfies this directly.
type Diarizer interface {
	Diarize(ctx context.Context, audio domain.AudioArtifact, hints diarize.Hints) ([]domain.DiarizationTurn, bool)
}

// SpeakerIdentifier is the C5 contract. *speaker.Service satisfies this
// directly.
type SpeakerIdentifier interface {
	Identify(ctx context.Context, audioPath string, turns []domain.DiarizationTurn, profiles []domain.VoiceProfile) ([]domain.SpeakerSegment, []speaker.Flip, bool)
}

// Embedder is the C7 contract. *embed.Service satisfies this directly.
type Embedder interface {
	EmbedSegments(ctx context.Context, segments []domain.TranscriptSegment, policy embed.Policy) ([]domain.TranscriptSegment, error)
}

// ProfileProvider supplies the known/guest voice profiles used by speaker
// identification. *profile.Store satisfies this directly.
type ProfileProvider interface {
	All() []domain.VoiceProfile
}

// Persister is the C8 contract the DB worker pool drives. *store.Store
// satisfies this directly.
type Persister interface {
	BeginVideoTx(ctx context.Context) (*sql.Tx, error)
	UpsertSource(ctx context.Context, tx *sql.Tx, in store.SourceInput) (int64, error)
	InsertSegments(ctx context.Context, tx *sql.Tx, sourceID int64, segments []domain.TranscriptSegment, policy store.SegmentPolicy) ([]int64, int, error)
	InsertEmbedding(ctx context.Context, tx *sql.Tx, segmentID int64, modelKey string, vector []float32) error
	SegmentCountForExternalID(ctx context.Context, externalID string) (int, error)
}
