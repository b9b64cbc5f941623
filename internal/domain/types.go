// Package domain holds the shared value types, error taxonomy, and context
// helpers used by every pipeline component. Nothing in this package talks
// to a subprocess, a model, or a database; it only describes shapes.
package domain

import (
	"strings"
	"time"
)

// VideoDescriptor is an immutable input to the pipeline, owned by the
// orchestrator for the duration of a run.
type VideoDescriptor struct {
	ID          string
	Title       string
	PublishTime *time.Time
	DurationS   *float64
	Channel     string
	ViewCount   *int64
	Tags        []string
}

// AudioArtifact is produced by the Audio Acquirer and consumed by ASR,
// diarization, and speaker identification. Exactly one in-flight video owns
// an AudioArtifact at a time; it is deleted on terminal success or failure.
type AudioArtifact struct {
	Path               string
	Codec              string
	SampleRate         int
	Channels           int
	DurationS          float64
	ContentFingerprint string
}

// Word is a single ASR token with timing and, once speaker identification
// has run, the speaker it was attributed to.
type Word struct {
	StartS       float64
	EndS         float64
	Text         string
	Confidence   *float64
	SpeakerLabel SpeakerLabel
	IsOverlap    bool
}

// ASRQuality carries the three scalar signals used to flag a segment for
// stage-two refinement.
type ASRQuality struct {
	AvgLogprob       *float64
	CompressionRatio *float64
	NoSpeechProb     *float64
}

// ASRSegment is the unit produced by the ASR engine before diarization has
// been folded in.
type ASRSegment struct {
	StartS          float64
	EndS            float64
	Text            string
	Words           []Word
	Quality         ASRQuality
	ReASR           bool
	NeedsRefinement bool
}

// DiarizationTurn is one exclusive speaker turn. Turns produced in exclusive
// mode never overlap: for any two turns A, B with A.StartS <= B.StartS,
// A.EndS <= B.StartS.
type DiarizationTurn struct {
	StartS    float64
	EndS      float64
	ClusterID int
}

// SpeakerLabelKind discriminates the SpeakerLabel sum type. It replaces the
// string aliasing the original implementation used ("CH", "CHAFFEE",
// "Chaffee" all meaning the same enrolled speaker).
type SpeakerLabelKind int

const (
	// SpeakerUnknown means no turn overlapped the word, or the cluster never
	// cleared the attribution thresholds.
	SpeakerUnknown SpeakerLabelKind = iota
	// SpeakerGuest means a voice was distinguished from the known speaker but
	// could not be matched to any enrolled profile.
	SpeakerGuest
	// SpeakerKnown means the label resolved to a specific enrolled profile
	// name, canonicalised at construction time.
	SpeakerKnown
)

func (k SpeakerLabelKind) String() string {
	switch k {
	case SpeakerKnown:
		return "KNOWN"
	case SpeakerGuest:
		return "GUEST"
	default:
		return "UNKNOWN"
	}
}

// SpeakerLabel is a closed sum type: Known(name) | Guest | Unknown. Callers
// must use the constructors below; the zero value is Unknown.
type SpeakerLabel struct {
	kind SpeakerLabelKind
	name string
}

// KnownSpeaker constructs a SpeakerLabel for an enrolled profile, trimming
// and preserving the profile's canonical casing. Callers are expected to
// have already resolved aliases to the canonical profile name before
// calling this constructor; SpeakerLabel itself performs no alias lookup.
func KnownSpeaker(name string) SpeakerLabel {
	return SpeakerLabel{kind: SpeakerKnown, name: strings.TrimSpace(name)}
}

// GuestSpeaker constructs the Guest variant.
func GuestSpeaker() SpeakerLabel {
	return SpeakerLabel{kind: SpeakerGuest}
}

// UnknownSpeaker constructs the Unknown variant (also the zero value).
func UnknownSpeaker() SpeakerLabel {
	return SpeakerLabel{kind: SpeakerUnknown}
}

// Kind reports which variant this label holds.
func (l SpeakerLabel) Kind() SpeakerLabelKind { return l.kind }

// Name returns the enrolled profile name, or "" for Guest/Unknown.
func (l SpeakerLabel) Name() string { return l.name }

// IsKnown reports whether this label names a specific enrolled profile.
func (l SpeakerLabel) IsKnown() bool { return l.kind == SpeakerKnown }

// String renders the persisted form: the profile name for Known, or the
// kind's upper-case tag for Guest/Unknown.
func (l SpeakerLabel) String() string {
	if l.kind == SpeakerKnown {
		return l.name
	}
	return l.kind.String()
}

// Equal compares two labels by variant and, for Known, by name.
func (l SpeakerLabel) Equal(other SpeakerLabel) bool {
	return l.kind == other.kind && l.name == other.name
}

// SpeakerSegment is produced by speaker identification: one label per
// diarization cluster window, carrying the evidence used to reach it.
type SpeakerSegment struct {
	StartS        float64
	EndS          float64
	Label         SpeakerLabel
	Confidence    float64
	Margin        float64
	ClusterID     int
	VoiceEmbedding []float32
}

// ClusterEvidenceKind discriminates ClusterEvidence. This replaces the
// Python sentinel tuple ('split_cluster', None, None) that used to live in
// the same list as real embedding vectors.
type ClusterEvidenceKind int

const (
	EvidenceEmbedding ClusterEvidenceKind = iota
	EvidenceOverMergeMarker
)

// ClusterEvidence is a tagged variant produced while sampling a cluster's
// sub-windows: either a window's embedding vector, or a marker that the
// cluster was flagged for per-segment re-identification. A compile-time
// distinction — rather than a runtime shape check on a (tag, nil, nil)
// tuple — prevents a marker from ever being averaged into a centroid.
type ClusterEvidence struct {
	kind      ClusterEvidenceKind
	embedding []float32
}

// NewEmbeddingEvidence wraps a window's embedding vector.
func NewEmbeddingEvidence(vec []float32) ClusterEvidence {
	return ClusterEvidence{kind: EvidenceEmbedding, embedding: vec}
}

// NewOverMergeMarker constructs the over-merge sentinel variant.
func NewOverMergeMarker() ClusterEvidence {
	return ClusterEvidence{kind: EvidenceOverMergeMarker}
}

// Kind reports which variant this evidence holds.
func (e ClusterEvidence) Kind() ClusterEvidenceKind { return e.kind }

// Embedding returns the wrapped vector and true, or nil and false if this
// evidence is the over-merge marker.
func (e ClusterEvidence) Embedding() ([]float32, bool) {
	if e.kind != EvidenceEmbedding {
		return nil, false
	}
	return e.embedding, true
}

// IsOverMergeMarker reports whether this evidence is the split-cluster
// sentinel.
func (e ClusterEvidence) IsOverMergeMarker() bool {
	return e.kind == EvidenceOverMergeMarker
}

// TranscriptSegment is the persisted unit produced by the segment builder
// and (optionally) embedded by the embedding batcher.
type TranscriptSegment struct {
	StartS             float64
	EndS               float64
	Text               string
	SpeakerLabel       SpeakerLabel
	SpeakerConfidence  *float64
	Quality            ASRQuality
	ReASR              bool
	IsOverlap          bool
	NeedsRefinement    bool
	Embedding          []float32
}

// VoiceProfile is a read-only enrolled speaker profile, loaded once per
// process and shared across workers without mutation.
type VoiceProfile struct {
	Name      string
	Centroid  []float32
	Threshold float64
	Metadata  map[string]string
}

// SourceRecord is the persisted row describing one ingested video.
type SourceRecord struct {
	RowID              int64
	ExternalID         string
	Title              string
	SourceKind         string
	PublishTime        *time.Time
	DurationS          *float64
	ViewCount          *int64
	URL                string
	Tags               []string
	ProvenanceMetadata map[string]any
}

// EmbeddingRecord is the persisted row in segment_embeddings_{D}.
type EmbeddingRecord struct {
	SegmentID int64
	ModelKey  string
	Embedding []float32
	CreatedAt time.Time
}
