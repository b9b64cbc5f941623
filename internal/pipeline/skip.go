package pipeline

import (
	"context"
	"sync"

	"ingestpipe/internal/domain"
)

// ExistingSegmentProber answers "does this external id already have
// persisted segments?", backed by internal/store.SegmentCountForExternalID.
type ExistingSegmentProber func(ctx context.Context, externalID string) (int, error)

// filterSkipped applies the skip-logic contract from §4.8: unless
// ForceReprocess is set or SkipExisting is false, a video with any existing
// persisted segments is skipped rather than enqueued. In LimitUnprocessed
// mode, the walk stops once Limit not-yet-processed videos have been
// identified, probing the database per candidate until the target is
// reached or the input is exhausted.
func filterSkipped(ctx context.Context, videos []domain.VideoDescriptor, prober ExistingSegmentProber, opts RunOptions) (kept []domain.VideoDescriptor, skipped []domain.VideoDescriptor, err error) {
	if opts.ForceReprocess || !opts.SkipExisting {
		if opts.LimitUnprocessed && opts.Limit > 0 && len(videos) > opts.Limit {
			return videos[:opts.Limit], nil, nil
		}
		return videos, nil, nil
	}

	for _, v := range videos {
		if opts.LimitUnprocessed && opts.Limit > 0 && len(kept) >= opts.Limit {
			break
		}
		count, probeErr := prober(ctx, v.ID)
		if probeErr != nil {
			return nil, nil, probeErr
		}
		if count > 0 {
			skipped = append(skipped, v)
			continue
		}
		kept = append(kept, v)
	}
	if !opts.LimitUnprocessed && opts.Limit > 0 && len(kept) > opts.Limit {
		skipped = append(skipped, kept[opts.Limit:]...)
		kept = kept[:opts.Limit]
	}
	return kept, skipped, nil
}

// ContentHashSeen is an in-run dedup set for the content-hash skip check:
// md5(video_id + publish_time_iso? + md5(first_120s_of_audio)?). The
// orchestrator computes the hash once an AudioArtifact is available (the
// first-120s fingerprint only exists post-download) and consults this set
// before handing the artifact to ASR workers.
type ContentHashSeen struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewContentHashSeen constructs an empty in-run dedup set.
func NewContentHashSeen() *ContentHashSeen {
	return &ContentHashSeen{seen: make(map[string]struct{})}
}

// CheckAndMark returns true if hash was already seen this run (a duplicate
// to discard), recording it either way.
func (c *ContentHashSeen) CheckAndMark(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[hash]; ok {
		return true
	}
	c.seen[hash] = struct{}{}
	return false
}
