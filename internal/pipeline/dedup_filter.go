package pipeline

import (
	"ingestpipe/internal/domain"
	"ingestpipe/internal/textutil"
)

const duplicateTitleSimilarityThreshold = 0.92

// FilterDuplicateTitles drops videos whose title is a near-duplicate of one
// already kept earlier in the slice (re-uploads, re-edits, region-locked
// mirrors under a different id), keeping the first occurrence. Grounded on
// the same title-fingerprint/cosine-similarity comparison the teacher uses
// to spot duplicate commentary-track candidates, applied here to listing
// output instead of audio-track transcripts.
func FilterDuplicateTitles(videos []domain.VideoDescriptor) []domain.VideoDescriptor {
	kept := make([]domain.VideoDescriptor, 0, len(videos))
	seen := make([]*textutil.Fingerprint, 0, len(videos))

	for _, v := range videos {
		fp := textutil.NewFingerprint(v.Title)
		if isDuplicateTitle(fp, seen) {
			continue
		}
		kept = append(kept, v)
		seen = append(seen, fp)
	}

	return kept
}

func isDuplicateTitle(fp *textutil.Fingerprint, seen []*textutil.Fingerprint) bool {
	if fp == nil {
		return false
	}
	for _, other := range seen {
		if textutil.CosineSimilarity(fp, other) >= duplicateTitleSimilarityThreshold {
			return true
		}
	}
	return false
}
