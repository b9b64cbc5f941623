package pipeline

import (
	"context"
	"errors"
	"sync"

	"ingestpipe/internal/domain"
)

// AccessibilityProbe performs a quick (≤30s) reachability check for one
// video, classifying it terminal (members-only/unavailable) without doing a
// full download. Concrete implementations wrap the same subprocess the
// Audio Acquirer eventually uses, asking it to stop at the first response.
type AccessibilityProbe func(ctx context.Context, videoID string) error

// Prefilter drops videos classified MEMBERS_ONLY or UNAVAILABLE before they
// ever reach Q0, using a bounded-concurrency accessibility probe. It only
// runs when opts says the source is non-local and the input batch meets
// PrefilterMinItems; for local sources (files already on disk) or small
// batches it is a no-op that returns the input unchanged.
func Prefilter(ctx context.Context, videos []domain.VideoDescriptor, probe AccessibilityProbe, opts RunOptions) []domain.VideoDescriptor {
	if opts.IsLocalSource || probe == nil || len(videos) < opts.PrefilterMinItems {
		return videos
	}

	concurrency := opts.PrefilterConcurrency
	if concurrency <= 0 {
		concurrency = 20
	}

	results := make([]bool, len(videos)) // true = keep
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, v := range videos {
		i, v := i, v
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := probe(ctx, v.ID)
			results[i] = !isDropClassification(err)
		}()
	}
	wg.Wait()

	kept := make([]domain.VideoDescriptor, 0, len(videos))
	for i, keep := range results {
		if keep {
			kept = append(kept, videos[i])
		}
	}
	return kept
}

func isDropClassification(err error) bool {
	return errors.Is(err, domain.ErrMembersOnly) || errors.Is(err, domain.ErrUnavailable)
}
