// Package pipeline is the Pipeline Orchestrator (C9): a bounded three-stage
// channel pipeline coordinating C2 (acquire) into C3+C4+C5+C6 (ASR,
// diarization, speaker ID, segment build) into C7+C8 (embed, persist),
// grounded on the teacher's workflow.Manager lane/heartbeat shape but
// rebuilt on Go channels + worker goroutines in place of the teacher's
// single DB-polled queue, since this core has no daemon process polling a
// shared table between runs.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ingestpipe/internal/diarize"
	"ingestpipe/internal/domain"
	"ingestpipe/internal/embed"
	"ingestpipe/internal/logging"
	"ingestpipe/internal/segment"
	"ingestpipe/internal/store"
	"ingestpipe/internal/telemetry"
	"ingestpipe/internal/textutil"
)

// Deps bundles every collaborator the orchestrator drives, named by
// contract rather than concrete type (following the same seam discipline as
// this codebase's subprocess commandRunner fields) so pipeline_test.go can
// substitute lightweight fakes instead of shelling out to yt-dlp, ffmpeg, or
// a GPU model for every worker-pool test.
type Deps struct {
	Acquirer Acquirer
	ASR      Transcriber
	Diarizer Diarizer
	Speaker  SpeakerIdentifier
	Embedder Embedder
	Store    Persister
	Profiles ProfileProvider

	Logger *slog.Logger
	Stats  *domain.IngestionStats

	Workers WorkerConfig
	Run     RunOptions

	// EmbeddingModelKey is recorded alongside every inserted embedding row.
	EmbeddingModelKey string
}

// Orchestrator drives one ingestion run end to end.
type Orchestrator struct {
	deps Deps
}

// New constructs an Orchestrator from its dependencies, filling in default
// worker pool sizes if the caller left them zero.
func New(deps Deps) *Orchestrator {
	if deps.Workers == (WorkerConfig{}) {
		deps.Workers = DefaultWorkerConfig()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Stats == nil {
		deps.Stats = &domain.IngestionStats{}
	}
	return &Orchestrator{deps: deps}
}

// Run executes the three-stage pipeline over videos until every item has
// reached a terminal state or ctx is cancelled, returning the final stats
// snapshot. Run never returns an error for a per-video failure — those are
// folded into stats — only for a setup failure that prevented the run from
// starting at all.
func (o *Orchestrator) Run(ctx context.Context, videos []domain.VideoDescriptor) (domain.IngestionStats, error) {
	d := o.deps
	logger := logging.NewComponentLogger(d.Logger, "pipeline")

	ctx = domain.WithRequestID(ctx, uuid.NewString())

	if d.Run.LockPath != "" {
		runLock := flock.New(d.Run.LockPath)
		locked, err := runLock.TryLock()
		if err != nil {
			return domain.IngestionStats{}, fmt.Errorf("pipeline: acquire run lock: %w", err)
		}
		if !locked {
			return domain.IngestionStats{}, errors.New("pipeline: another ingest run holds the lock at " + d.Run.LockPath)
		}
		defer func() { _ = runLock.Unlock() }()
	}

	kept, skippedVideos, err := filterSkipped(ctx, videos, o.existingSegmentProber(), d.Run)
	if err != nil {
		return domain.IngestionStats{}, fmt.Errorf("pipeline: skip-logic probe: %w", err)
	}
	for range skippedVideos {
		d.Stats.IncSkipped()
	}
	d.Stats.SetTotal(int64(len(kept)))

	if d.Run.DryRun {
		logger.Info("dry run: would process videos",
			logging.Int("count", len(kept)),
		)
		return d.Stats.Snapshot(), nil
	}

	q0 := make(chan domain.VideoDescriptor, len(kept))
	q1 := make(chan acquiredItem, d.Workers.Q1Capacity)
	q2 := make(chan transcribedItem, d.Workers.Q2Capacity)

	for _, v := range kept {
		q0 <- v
	}
	close(q0)

	hashSeen := NewContentHashSeen()

	sampleCtx, stopSampling := context.WithCancel(ctx)
	sampler := telemetry.NewSampler("nvidia-smi", nil, logger, d.Stats, func() telemetry.QueueDepths {
		return telemetry.QueueDepths{Q1: len(q1), Q2: len(q2)}
	})
	go sampler.Run(sampleCtx)
	defer stopSampling()

	var ioWG, asrWG, dbWG sync.WaitGroup

	downloadSem := make(chan struct{}, maxInt(d.Workers.DownloadSemaphore, 1))

	for i := 0; i < maxInt(d.Workers.IOWorkers, 1); i++ {
		ioWG.Add(1)
		go o.ioWorker(ctx, &ioWG, q0, q1, downloadSem, hashSeen, logger)
	}
	for i := 0; i < maxInt(d.Workers.ASRWorkers, 1); i++ {
		asrWG.Add(1)
		go o.asrWorker(ctx, &asrWG, q1, q2, logger)
	}
	for i := 0; i < maxInt(d.Workers.DBWorkers, 1); i++ {
		dbWG.Add(1)
		go o.dbWorker(ctx, &dbWG, q2, logger)
	}

	ioWG.Wait()
	close(q1)
	asrWG.Wait()
	close(q2)
	dbWG.Wait()

	return d.Stats.Snapshot(), nil
}

func (o *Orchestrator) existingSegmentProber() ExistingSegmentProber {
	return func(ctx context.Context, externalID string) (int, error) {
		if o.deps.Store == nil {
			return 0, nil
		}
		return o.deps.Store.SegmentCountForExternalID(ctx, externalID)
	}
}

func (o *Orchestrator) ioWorker(ctx context.Context, wg *sync.WaitGroup, q0 <-chan domain.VideoDescriptor, q1 chan<- acquiredItem, downloadSem chan struct{}, hashSeen *ContentHashSeen, logger *slog.Logger) {
	defer wg.Done()
	d := o.deps

	for desc := range q0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		videoCtx := domain.WithVideoID(domain.WithLane(ctx, "io"), desc.ID)
		downloadSem <- struct{}{}
		audio, err := d.Acquirer.Acquire(videoCtx, desc.ID)
		<-downloadSem
		if err != nil {
			d.Stats.IncError(err)
			logging.WarnWithContext(logger, "acquisition failed", "acquire_failed",
				logging.String(logging.FieldVideoID, desc.ID), logging.Error(err),
			)
			continue
		}

		hashInput := desc.ID
		if desc.PublishTime != nil {
			hashInput += desc.PublishTime.UTC().Format(time.RFC3339)
		}
		hashInput += audio.ContentFingerprint
		contentHash := md5.Sum([]byte(hashInput))
		if hashSeen.CheckAndMark(hex.EncodeToString(contentHash[:])) {
			d.Stats.IncSkipped()
			_ = os.Remove(audio.Path)
			continue
		}

		select {
		case q1 <- acquiredItem{desc: desc, audio: audio}:
		case <-ctx.Done():
			_ = os.Remove(audio.Path)
			return
		}
	}
}

func (o *Orchestrator) asrWorker(ctx context.Context, wg *sync.WaitGroup, q1 <-chan acquiredItem, q2 chan<- transcribedItem, logger *slog.Logger) {
	defer wg.Done()
	d := o.deps

	for item := range q1 {
		select {
		case <-ctx.Done():
			_ = os.Remove(item.audio.Path)
			return
		default:
		}

		videoCtx := domain.WithVideoID(domain.WithLane(ctx, "asr"), item.desc.ID)
		isInterview := classifyIsInterview(item.desc)
		result, fellBack, err := d.ASR.Transcribe(videoCtx, item.audio, item.audio.DurationS/60.0, isInterview)
		if err != nil {
			d.Stats.IncError(err)
			_ = os.Remove(item.audio.Path)
			continue
		}

		hints := diarize.ResolveHints(diarize.Hints{}, firstMinuteText(result.Segments))
		turns, diarizeDegraded := d.Diarizer.Diarize(videoCtx, item.audio, hints)

		profiles := d.Profiles.All()
		speakerSegments, _, speakerDegraded := d.Speaker.Identify(videoCtx, item.audio.Path, turns, profiles)

		logger.Debug("diarization/speaker-id quality",
			logging.String(logging.FieldVideoID, item.desc.ID),
			logging.String("diarize_result", textutil.Ternary(diarizeDegraded, "degraded", "full")),
			logging.String("speaker_result", textutil.Ternary(speakerDegraded, "degraded", "full")),
		)

		transcriptSegments := segment.Build(result.Segments, turns, speakerSegments, d.Run.Attribution)

		embedded, err := d.Embedder.EmbedSegments(videoCtx, transcriptSegments, embed.Policy{
			KnownOnly: d.Run.EmbedKnownOnly,
			KnownName: d.Run.KnownSpeakerName,
		})
		if err != nil {
			logging.WarnWithContext(logger, "embedding failed, persisting without vectors", "embedding_failed",
				logging.String(logging.FieldVideoID, item.desc.ID), logging.Error(err),
			)
			embedded = transcriptSegments
		}

		refined := false
		for _, seg := range result.Segments {
			if seg.ReASR {
				refined = true
				break
			}
		}
		d.Stats.RecordMethod(refined, fellBack)

		out := transcribedItem{
			desc:            item.desc,
			audio:           item.audio,
			segments:        embedded,
			refined:         refined,
			asrFellBack:     fellBack,
			diarizeDegraded: diarizeDegraded,
			speakerDegraded: speakerDegraded,
			processingTimeS: result.ProcessingTimeS,
		}

		select {
		case q2 <- out:
		case <-ctx.Done():
			_ = os.Remove(item.audio.Path)
			return
		}
	}
}

func (o *Orchestrator) dbWorker(ctx context.Context, wg *sync.WaitGroup, q2 <-chan transcribedItem, logger *slog.Logger) {
	defer wg.Done()
	d := o.deps

	for item := range q2 {
		videoCtx := domain.WithVideoID(domain.WithLane(ctx, "db"), item.desc.ID)
		if err := o.persist(videoCtx, item); err != nil {
			d.Stats.IncError(err)
			logging.WarnWithContext(logger, "persistence failed", "persist_failed",
				logging.String(logging.FieldVideoID, item.desc.ID), logging.Error(err),
			)
		} else {
			d.Stats.IncProcessed(item.processingTimeS, item.audio.DurationS)
		}
		_ = os.Remove(item.audio.Path)
	}
}

func (o *Orchestrator) persist(ctx context.Context, item transcribedItem) error {
	d := o.deps
	tx, err := d.Store.BeginVideoTx(ctx)
	if err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "pipeline", "persist", "begin video tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	sourceID, err := d.Store.UpsertSource(ctx, tx, store.SourceInput{
		ExternalID: item.desc.ID,
		Title:      item.desc.Title,
		SourceKind: "youtube",
		DurationS:  item.desc.DurationS,
		ViewCount:  item.desc.ViewCount,
		Tags:       item.desc.Tags,
		ProvenanceMetadata: map[string]any{
			"channel": item.desc.Channel,
		},
	})
	if err != nil {
		return err
	}

	ids, inserted, err := d.Store.InsertSegments(ctx, tx, sourceID, item.segments, store.SegmentPolicy{
		StoreKnownOnly: d.Run.StoreKnownOnly,
		KnownName:      d.Run.KnownSpeakerName,
	})
	if err != nil {
		return err
	}
	_ = inserted

	insertedLabels := make([]domain.SpeakerLabel, 0, len(ids))
	for i, seg := range item.segments {
		if ids[i] == 0 {
			continue
		}
		insertedLabels = append(insertedLabels, seg.SpeakerLabel)
		if len(seg.Embedding) == 0 {
			continue
		}
		if err := d.Store.InsertEmbedding(ctx, tx, ids[i], d.EmbeddingModelKey, seg.Embedding); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "pipeline", "persist", "commit video tx", err)
	}
	for _, label := range insertedLabels {
		d.Stats.RecordSegmentSpeaker(label)
	}
	return nil
}

// firstMinuteText concatenates ASR segment text up to 60 seconds in, the
// window diarize.LooksConversational inspects for conversational markers.
func firstMinuteText(segments []domain.ASRSegment) string {
	var out string
	for _, seg := range segments {
		if seg.StartS > 60 {
			break
		}
		out += " " + seg.Text
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
