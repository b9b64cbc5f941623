package pipeline

import (
	"time"

	"ingestpipe/internal/domain"
)

// FilterSincePublished drops videos published before since. A nil since
// (the flag unset) or a video with unknown publish time is kept, since
// filtering on absent data would silently drop more than the operator
// asked for.
func FilterSincePublished(videos []domain.VideoDescriptor, since *time.Time) []domain.VideoDescriptor {
	if since == nil {
		return videos
	}
	kept := make([]domain.VideoDescriptor, 0, len(videos))
	for _, v := range videos {
		if v.PublishTime == nil || !v.PublishTime.Before(*since) {
			kept = append(kept, v)
		}
	}
	return kept
}
