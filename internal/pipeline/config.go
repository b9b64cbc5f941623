package pipeline

import "ingestpipe/internal/segment"

// WorkerConfig sizes the three worker pools; defaults match §4.8: I/O and
// DB pools are dominated by network/database latency so they run large,
// while the ASR pool stays small because each worker drives the single GPU
// serially.
type WorkerConfig struct {
	IOWorkers  int
	ASRWorkers int
	DBWorkers  int

	// Q1Capacity/Q2Capacity bound the audio and transcribed-segment queues.
	Q1Capacity int
	Q2Capacity int

	// DownloadSemaphore caps concurrent in-flight downloads across all I/O
	// workers, independently of IOWorkers.
	DownloadSemaphore int
}

// DefaultWorkerConfig returns the spec's stated defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		IOWorkers:         12,
		ASRWorkers:        2,
		DBWorkers:         12,
		Q1Capacity:        24,
		Q2Capacity:        12,
		DownloadSemaphore: 20,
	}
}

// RunOptions controls skip logic, forcing, and dry-run behaviour for one
// invocation, set from CLI flags / config-key overrides.
type RunOptions struct {
	ForceReprocess    bool
	SkipExisting      bool
	LimitUnprocessed  bool
	Limit             int
	DryRun            bool

	StoreKnownOnly   bool
	EmbedKnownOnly   bool
	KnownSpeakerName string

	// Attribution carries the word-level attribution thresholds the segment
	// builder applies when a word overlaps more than one speaker turn.
	Attribution segment.AttributionConfig

	// PrefilterMinItems gates the accessibility pre-filter: it only runs for
	// non-local sources with at least this many candidate videos.
	PrefilterMinItems    int
	PrefilterConcurrency int
	IsLocalSource        bool

	// LockPath, if set, is the path to a run-lock file the orchestrator
	// holds for the duration of Run so two invocations never race over the
	// same audio staging directory. Empty disables locking (tests don't
	// need one).
	LockPath string
}

// DefaultRunOptions mirrors the CLI's default toggles.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		SkipExisting:         true,
		PrefilterMinItems:    15,
		PrefilterConcurrency: 20,
	}
}
