package pipeline

import "ingestpipe/internal/domain"

// shortsDurationThresholdS matches YouTube's own Shorts cutoff.
const shortsDurationThresholdS = 180.0

// FilterDuration drops videos below the Shorts duration threshold (when
// skipShorts is set) and above maxDurationS (when maxDurationS > 0),
// grounded on ingest_youtube.py's --skip-shorts/--max-duration input
// filters. A video with unknown duration (DurationS == nil) is kept,
// since neither filter can be evaluated without it and rejecting on
// missing metadata would be a silent, surprising drop.
func FilterDuration(videos []domain.VideoDescriptor, skipShorts bool, maxDurationS float64) []domain.VideoDescriptor {
	if !skipShorts && maxDurationS <= 0 {
		return videos
	}
	kept := make([]domain.VideoDescriptor, 0, len(videos))
	for _, v := range videos {
		if v.DurationS == nil {
			kept = append(kept, v)
			continue
		}
		if skipShorts && *v.DurationS < shortsDurationThresholdS {
			continue
		}
		if maxDurationS > 0 && *v.DurationS > maxDurationS {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}
