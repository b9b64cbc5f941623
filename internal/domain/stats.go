package domain

import "sync"

// TranscriptionMethodCounts tallies how many videos landed in each ASR path.
type TranscriptionMethodCounts struct {
	StandardOnly int64
	Refined      int64
	Fallback     int64
}

// SegmentSpeakerCounts tallies persisted segments by speaker class.
type SegmentSpeakerCounts struct {
	Known   int64
	Guest   int64
	Unknown int64
}

// QueuePeaks records the highest observed depth of each bounded queue,
// sampled by the telemetry loop alongside GPU utilisation.
type QueuePeaks struct {
	Q1AudioPeak int
	Q2ASRPeak   int
}

// IngestionStats is the single piece of cross-worker mutable state besides
// the queues themselves. It is guarded by one mutex; every update is a short
// integer add, matching the concurrency model's "never hold two locks"
// discipline — atomics are deliberately avoided so the whole record updates
// as one consistent snapshot under Snapshot().
type IngestionStats struct {
	mu sync.Mutex

	Total      int64
	Processed  int64
	Skipped    int64
	Errored    int64
	NoAudio    int64

	Unavailable    int64
	MembersOnly    int64
	RateLimited    int64
	DownloadFailed int64
	ASRFailed      int64
	PersistFailed  int64

	Methods  TranscriptionMethodCounts
	Segments SegmentSpeakerCounts
	Peaks    QueuePeaks

	ProcessingSecondsAccum float64
	TotalAudioSeconds      float64
}

// IncError increments a named terminal-error counter by one, routed through
// StatCounterFor so callers never hand-pick the wrong field.
func (s *IngestionStats) IncError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch StatCounterFor(err) {
	case "unavailable":
		s.Unavailable++
	case "members_only":
		s.MembersOnly++
	case "no_audio":
		s.NoAudio++
	case "rate_limited":
		s.RateLimited++
	case "download_failed":
		s.DownloadFailed++
	case "asr_failed":
		s.ASRFailed++
	case "persist_failed":
		s.PersistFailed++
	}
	s.Errored++
}

// IncProcessed records one fully-persisted video and its contribution to the
// running totals used to compute real-time factor.
func (s *IngestionStats) IncProcessed(processingSeconds, audioSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.ProcessingSecondsAccum += processingSeconds
	s.TotalAudioSeconds += audioSeconds
}

// IncSkipped records one video skipped before being enqueued.
func (s *IngestionStats) IncSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

// RecordMethod tallies which ASR path a video took.
func (s *IngestionStats) RecordMethod(refined, fellBack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case fellBack:
		s.Methods.Fallback++
	case refined:
		s.Methods.Refined++
	default:
		s.Methods.StandardOnly++
	}
}

// RecordSegmentSpeaker tallies one persisted segment by speaker class.
func (s *IngestionStats) RecordSegmentSpeaker(label SpeakerLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch label.Kind() {
	case SpeakerKnown:
		s.Segments.Known++
	case SpeakerGuest:
		s.Segments.Guest++
	default:
		s.Segments.Unknown++
	}
}

// ObserveQueueDepth updates the running peak for the named queue ("q1" or
// "q2"); called by the telemetry sampler every 15 seconds.
func (s *IngestionStats) ObserveQueueDepth(queue string, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch queue {
	case "q1":
		if depth > s.Peaks.Q1AudioPeak {
			s.Peaks.Q1AudioPeak = depth
		}
	case "q2":
		if depth > s.Peaks.Q2ASRPeak {
			s.Peaks.Q2ASRPeak = depth
		}
	}
}

// SetTotal records the batch size once, at seed time.
func (s *IngestionStats) SetTotal(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total = n
}

// Snapshot returns a value copy safe to read or print without holding the
// lock further; the embedded mutex is not copied across call boundaries.
func (s *IngestionStats) Snapshot() IngestionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IngestionStats{
		Total:                  s.Total,
		Processed:              s.Processed,
		Skipped:                s.Skipped,
		Errored:                s.Errored,
		NoAudio:                s.NoAudio,
		Unavailable:            s.Unavailable,
		MembersOnly:            s.MembersOnly,
		RateLimited:            s.RateLimited,
		DownloadFailed:         s.DownloadFailed,
		ASRFailed:              s.ASRFailed,
		PersistFailed:          s.PersistFailed,
		Methods:                s.Methods,
		Segments:               s.Segments,
		Peaks:                  s.Peaks,
		ProcessingSecondsAccum: s.ProcessingSecondsAccum,
		TotalAudioSeconds:      s.TotalAudioSeconds,
	}
}

// RealTimeFactor returns ProcessingSecondsAccum / TotalAudioSeconds, or 0
// when no audio has been processed yet.
func (s IngestionStats) RealTimeFactor() float64 {
	if s.TotalAudioSeconds <= 0 {
		return 0
	}
	return s.ProcessingSecondsAccum / s.TotalAudioSeconds
}
