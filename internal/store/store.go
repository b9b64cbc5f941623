// Package store is the persistence layer: source upsert, segment insert, and
// per-dimension embedding insert against PostgreSQL with pgvector. The
// busy/retry wrapper and schema-versioning shape are grounded on
// internal/queue/store_core.go and internal/queue/schema.go, adapted from
// SQLite's SQLITE_BUSY handling to Postgres' serialization-failure and
// connection-exception classes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ingestpipe/internal/domain"
)

// Mode controls whether missing tables are auto-created or a hard failure.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

const (
	retryAttempts       = 5
	retryInitialBackoff = 10 * time.Millisecond
	retryMaxBackoff     = 200 * time.Millisecond
)

// retryableSQLState classes: serialization_failure, deadlock_detected,
// connection_exception and its subclasses.
var retryableSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"08000": true,
	"08003": true,
	"08006": true,
	"08001": true,
	"08004": true,
}

// Store wraps a *sql.DB connected to PostgreSQL, one per process.
type Store struct {
	db   *sql.DB
	mode Mode
}

// Open connects to databaseURL and verifies or creates the schema depending
// on mode. In ModeProduction, a missing segments table is a fatal error
// (domain.ErrSchemaMissing); in ModeDevelopment the core table is created on
// demand.
func Open(ctx context.Context, databaseURL string, mode Mode) (*Store, error) {
	if databaseURL == "" {
		return nil, domain.Wrap(domain.ErrMissingDatabaseURL, "store", "open", "DATABASE_URL is empty", nil)
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, domain.Wrap(domain.ErrMissingDatabaseURL, "store", "open", "failed to open database handle", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.Wrap(domain.ErrMissingDatabaseURL, "store", "open", "database ping failed", err)
	}
	s := &Store{db: db, mode: mode}
	if err := s.ensureCoreSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && retryableSQLStates[pgErr.SQLState()] {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "serialization failure") || strings.Contains(msg, "deadlock detected") || strings.Contains(msg, "connection reset")
}

func retryOnTransient(ctx context.Context, op func() error) error {
	delay := retryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == retryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) ensureCoreSchema(ctx context.Context) error {
	var tableExists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'sources')`,
	).Scan(&tableExists)
	if err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_schema", "check sources table", err)
	}
	if tableExists {
		return nil
	}
	if s.mode == ModeProduction {
		return domain.Wrap(domain.ErrSchemaMissing, "store", "ensure_schema", "sources table missing in production mode", nil)
	}
	return s.createCoreSchema(ctx)
}

func (s *Store) createCoreSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "create_schema", "begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, coreSchemaSQL); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "create_schema", "execute core schema", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "create_schema", "commit schema", err)
	}
	return nil
}

const coreSchemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS sources (
	id                   BIGSERIAL PRIMARY KEY,
	external_id          TEXT NOT NULL UNIQUE,
	title                TEXT NOT NULL,
	source_kind          TEXT NOT NULL,
	publish_time         TIMESTAMPTZ,
	duration_s           DOUBLE PRECISION,
	view_count           BIGINT,
	url                  TEXT,
	tags                 TEXT[],
	provenance_metadata  JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS segments (
	id                   BIGSERIAL PRIMARY KEY,
	source_id            BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	start_s              DOUBLE PRECISION NOT NULL,
	end_s                DOUBLE PRECISION NOT NULL,
	text                 TEXT NOT NULL,
	speaker_label        TEXT NOT NULL,
	speaker_confidence   DOUBLE PRECISION,
	avg_logprob          DOUBLE PRECISION,
	compression_ratio    DOUBLE PRECISION,
	no_speech_prob       DOUBLE PRECISION,
	re_asr               BOOLEAN NOT NULL DEFAULT false,
	is_overlap           BOOLEAN NOT NULL DEFAULT false,
	needs_refinement     BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS segments_source_id_start_s_idx ON segments (source_id, start_s);
`

// SourceInput is the caller-supplied shape for upsert_source.
type SourceInput struct {
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

// UpsertSource inserts or updates a source row keyed by ExternalID, returning
// its row id for subsequent segment/embedding inserts.
func (s *Store) UpsertSource(ctx context.Context, tx *sql.Tx, in SourceInput) (int64, error) {
	ctx = ensureContext(ctx)
	metadata, err := marshalJSONB(in.ProvenanceMetadata)
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistFailed, "store", "upsert_source", "marshal provenance metadata", err)
	}

	var rowID int64
	execOnce := func() error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO sources (external_id, title, source_kind, publish_time, duration_s, view_count, url, tags, provenance_metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (external_id) DO UPDATE SET
				title = EXCLUDED.title,
				source_kind = EXCLUDED.source_kind,
				publish_time = EXCLUDED.publish_time,
				duration_s = EXCLUDED.duration_s,
				view_count = EXCLUDED.view_count,
				url = EXCLUDED.url,
				tags = EXCLUDED.tags,
				provenance_metadata = EXCLUDED.provenance_metadata
			RETURNING id`,
			in.ExternalID, in.Title, in.SourceKind, in.PublishTime, in.DurationS, in.ViewCount, in.URL, pqTextArray(in.Tags), metadata,
		).Scan(&rowID)
	}
	if err := retryOnTransient(ctx, execOnce); err != nil {
		return 0, domain.Wrap(domain.ErrPersistFailed, "store", "upsert_source", "upsert source row", err)
	}
	return rowID, nil
}

// SegmentPolicy controls which segments are actually inserted.
type SegmentPolicy struct {
	StoreKnownOnly bool
	KnownName      string
}

// InsertSegments batches an insert of segments under sourceID, skipping rows
// whose speaker isn't the known name when StoreKnownOnly is set. It returns
// the row ids assigned (in input order, with a skipped row mapped to 0) and
// the count of rows actually inserted — skipped rows are never counted.
func (s *Store) InsertSegments(ctx context.Context, tx *sql.Tx, sourceID int64, segments []domain.TranscriptSegment, policy SegmentPolicy) ([]int64, int, error) {
	ctx = ensureContext(ctx)
	ids := make([]int64, len(segments))
	inserted := 0

	for i, seg := range segments {
		if policy.StoreKnownOnly && !isKnownMatch(seg, policy.KnownName) {
			continue
		}
		var id int64
		execOnce := func() error {
			return tx.QueryRowContext(ctx, `
				INSERT INTO segments (source_id, start_s, end_s, text, speaker_label, speaker_confidence, avg_logprob, compression_ratio, no_speech_prob, re_asr, is_overlap, needs_refinement)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				RETURNING id`,
				sourceID, seg.StartS, seg.EndS, seg.Text, seg.SpeakerLabel.String(), seg.SpeakerConfidence,
				seg.Quality.AvgLogprob, seg.Quality.CompressionRatio, seg.Quality.NoSpeechProb,
				seg.ReASR, seg.IsOverlap, seg.NeedsRefinement,
			).Scan(&id)
		}
		if err := retryOnTransient(ctx, execOnce); err != nil {
			return nil, 0, domain.Wrap(domain.ErrPersistFailed, "store", "insert_segments", fmt.Sprintf("insert segment %d", i), err)
		}
		ids[i] = id
		inserted++
	}
	return ids, inserted, nil
}

func isKnownMatch(seg domain.TranscriptSegment, knownName string) bool {
	return seg.SpeakerLabel.IsKnown() && strings.EqualFold(seg.SpeakerLabel.Name(), knownName)
}

// InsertEmbedding writes one embedding row into the per-dimension table
// selected by len(vector), auto-creating the table (and its IVFFlat index)
// in development mode, or failing fatally if it is missing in production.
func (s *Store) InsertEmbedding(ctx context.Context, tx *sql.Tx, segmentID int64, modelKey string, vector []float32) error {
	ctx = ensureContext(ctx)
	if len(vector) == 0 {
		return nil
	}
	table := embeddingTableName(len(vector))
	if err := s.ensureEmbeddingTable(ctx, tx, table, len(vector)); err != nil {
		return err
	}

	execOnce := func() error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (segment_id, model_key, embedding)
			VALUES ($1, $2, $3)
			ON CONFLICT (segment_id, model_key) DO NOTHING`, table),
			segmentID, modelKey, vectorLiteral(vector),
		)
		return err
	}
	if err := retryOnTransient(ctx, execOnce); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "insert_embeddings", "insert embedding row", err)
	}
	return nil
}

func embeddingTableName(dimension int) string {
	return fmt.Sprintf("segment_embeddings_%d", dimension)
}

func (s *Store) ensureEmbeddingTable(ctx context.Context, tx *sql.Tx, table string, dimension int) error {
	var tableExists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
	).Scan(&tableExists)
	if err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_embedding_table", "check embedding table", err)
	}
	if tableExists {
		return nil
	}
	if s.mode == ModeProduction {
		return domain.Wrap(domain.ErrSchemaMissing, "store", "ensure_embedding_table", fmt.Sprintf("%s missing in production mode", table), nil)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			segment_id BIGINT NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
			model_key  TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (segment_id, model_key)
		)`, table, dimension)); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_embedding_table", "create embedding table", err)
	}
	indexName := fmt.Sprintf("%s_embedding_ivfflat_idx", table)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		indexName, table, IVFFlatListCount(0),
	)); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_embedding_table", "create ivfflat index", err)
	}
	return nil
}

// IVFFlatListCount returns the `lists` parameter for an IVFFlat index sized
// from rowCount: max(10, min(100, floor(sqrt(rowCount)))), floored at 50.
func IVFFlatListCount(rowCount int64) int {
	if rowCount < 0 {
		rowCount = 0
	}
	lists := isqrt(rowCount)
	if lists < 10 {
		lists = 10
	}
	if lists > 100 {
		lists = 100
	}
	if lists < 50 {
		lists = 50
	}
	return lists
}

func isqrt(n int64) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return int(x)
}

// EnsureEmbeddingIndex creates an IVFFlat ANN index on table (if absent),
// sized from the table's current row count. Called by the caller once a
// meaningful number of rows exist — not on every insert.
func (s *Store) EnsureEmbeddingIndex(ctx context.Context, dimension int) error {
	ctx = ensureContext(ctx)
	if s.mode == ModeProduction {
		return nil
	}
	table := embeddingTableName(dimension)
	var rowCount int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&rowCount); err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_embedding_index", "count embedding rows", err)
	}
	lists := IVFFlatListCount(rowCount)
	indexName := fmt.Sprintf("%s_embedding_ivfflat_idx", table)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		indexName, table, lists,
	))
	if err != nil {
		return domain.Wrap(domain.ErrPersistFailed, "store", "ensure_embedding_index", "create ivfflat index", err)
	}
	return nil
}

// BeginVideoTx opens the single transaction that spans upsert-source,
// segment insert, and embedding insert for one video.
func (s *Store) BeginVideoTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ensureContext(ctx), nil)
}

// SegmentCountForExternalID supports the orchestrator's skip-logic probe:
// "does this source already have any persisted segments?"
func (s *Store) SegmentCountForExternalID(ctx context.Context, externalID string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM segments
		JOIN sources ON sources.id = segments.source_id
		WHERE sources.external_id = $1`, externalID).Scan(&count)
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistFailed, "store", "segment_count", "count existing segments", err)
	}
	return count, nil
}
