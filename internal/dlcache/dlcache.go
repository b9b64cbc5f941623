// Package dlcache is a local on-disk cache of validated WAVs keyed by
// (video_id, content_fingerprint), consulted by the Audio Acquirer before
// re-invoking the downloader on a re-run within the cache's TTL. The
// metadata index is a SQLite table (modernc.org/sqlite, matching the
// teacher's own driver choice for local embedded storage); the WAV payload
// itself is written with a size- and hash-verified copy before its index
// row is written. The index row takes the place of
// internal/ripcache/metadata.go's JSON sidecar, since the cache needs
// range/TTL queries rather than a single per-directory lookup.
package dlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ingestpipe/internal/fileutil"
)

// Cache stores validated WAVs on disk and indexes them by (videoID,
// contentFingerprint) with a bounded time-to-live.
type Cache struct {
	db      *sql.DB
	dir     string
	ttl     time.Duration
}

// Open creates (or reuses) the cache database and storage directory under
// dir. ttl bounds how long an entry is considered fresh; entries older than
// ttl are treated as a cache miss and pruned lazily on lookup.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("dlcache: empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dlcache: create cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("dlcache: open index: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dlcache: apply pragma: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			video_id             TEXT NOT NULL,
			content_fingerprint  TEXT NOT NULL,
			wav_path             TEXT NOT NULL,
			duration_s           REAL NOT NULL,
			created_at           INTEGER NOT NULL,
			PRIMARY KEY (video_id, content_fingerprint)
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dlcache: create entries table: %w", err)
	}
	return &Cache{db: db, dir: dir, ttl: ttl}, nil
}

// Close releases the index database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Entry is a cache hit: a validated WAV ready for reuse without
// re-downloading.
type Entry struct {
	WAVPath   string
	DurationS float64
}

// Lookup returns a cache hit for (videoID, contentFingerprint) if one exists
// and has not exceeded ttl, and its backing file is still present. A miss
// (including an expired or dangling entry, which is pruned) returns
// ok=false with no error.
func (c *Cache) Lookup(ctx context.Context, videoID, contentFingerprint string) (Entry, bool, error) {
	var wavPath string
	var durationS float64
	var createdAtUnix int64
	err := c.db.QueryRowContext(ctx, `
		SELECT wav_path, duration_s, created_at FROM entries
		WHERE video_id = ? AND content_fingerprint = ?`,
		videoID, contentFingerprint,
	).Scan(&wavPath, &durationS, &createdAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("dlcache: lookup: %w", err)
	}

	createdAt := time.Unix(0, createdAtUnix)
	if c.ttl > 0 && time.Since(createdAt) > c.ttl {
		_ = c.evict(ctx, videoID, contentFingerprint, wavPath)
		return Entry{}, false, nil
	}
	if _, statErr := os.Stat(wavPath); statErr != nil {
		_ = c.evict(ctx, videoID, contentFingerprint, "")
		return Entry{}, false, nil
	}
	return Entry{WAVPath: wavPath, DurationS: durationS}, true, nil
}

// Store copies srcWAVPath into the cache and records an index row,
// replacing any prior entry for the same key. The copy is verified
// (SHA256 + size) before the index row is committed, so a crash mid-copy
// never leaves a corrupt entry visible to Lookup.
func (c *Cache) Store(ctx context.Context, videoID, contentFingerprint, srcWAVPath string, durationS float64) error {
	destDir := filepath.Join(c.dir, "wav")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("dlcache: create wav dir: %w", err)
	}
	dest := filepath.Join(destDir, videoID+"-"+contentFingerprint+".wav")

	if err := fileutil.CopyFileVerified(srcWAVPath, dest); err != nil {
		return fmt.Errorf("dlcache: copy wav: %w", err)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO entries (video_id, content_fingerprint, wav_path, duration_s, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (video_id, content_fingerprint) DO UPDATE SET
			wav_path = excluded.wav_path,
			duration_s = excluded.duration_s,
			created_at = excluded.created_at`,
		videoID, contentFingerprint, dest, durationS, time.Now().UnixNano(),
	)
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("dlcache: index entry: %w", err)
	}
	return nil
}

func (c *Cache) evict(ctx context.Context, videoID, contentFingerprint, wavPath string) error {
	if wavPath != "" {
		_ = os.Remove(wavPath)
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE video_id = ? AND content_fingerprint = ?`, videoID, contentFingerprint)
	return err
}

// PruneExpired deletes every entry (and its backing file) older than ttl.
// Callers run this periodically; Lookup also prunes lazily on a per-key
// basis.
func (c *Cache) PruneExpired(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-c.ttl).UnixNano()
	rows, err := c.db.QueryContext(ctx, `SELECT video_id, content_fingerprint, wav_path FROM entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("dlcache: query expired: %w", err)
	}
	type key struct{ videoID, fingerprint, path string }
	var expired []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.videoID, &k.fingerprint, &k.path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("dlcache: scan expired: %w", err)
		}
		expired = append(expired, k)
	}
	rows.Close()

	for _, k := range expired {
		if err := c.evict(ctx, k.videoID, k.fingerprint, k.path); err != nil {
			return 0, fmt.Errorf("dlcache: evict expired: %w", err)
		}
	}
	return len(expired), nil
}
