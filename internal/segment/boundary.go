// Package segment implements the Segment Builder (C6): splitting ASR
// segments at diarization turn boundaries, assigning dominant speaker
// labels, attributing individual words, and grouping the result into
// retrieval-sized units.
package segment

import (
	"sort"
	"strings"

	"ingestpipe/internal/domain"
)

// splitPoints builds the sorted, de-duplicated set of cut points from the
// diarization turns: every turn.start and turn.end, plus 0.0.
func splitPoints(turns []domain.DiarizationTurn) []float64 {
	seen := map[float64]struct{}{0.0: {}}
	points := []float64{0.0}
	for _, t := range turns {
		for _, p := range []float64{t.StartS, t.EndS} {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				points = append(points, p)
			}
		}
	}
	sort.Float64s(points)
	return points
}

// boundarySplit cuts each ASR segment at any split-point it strictly
// contains, using word start timestamps to decide which new segment a word
// belongs to. Segments that contain no split-point pass through unchanged.
func boundarySplit(segments []domain.ASRSegment, points []float64) []domain.ASRSegment {
	var out []domain.ASRSegment
	for _, seg := range segments {
		var interior []float64
		for _, p := range points {
			if p > seg.StartS && p < seg.EndS {
				interior = append(interior, p)
			}
		}
		if len(interior) == 0 {
			out = append(out, seg)
			continue
		}

		boundaries := append([]float64{seg.StartS}, interior...)
		boundaries = append(boundaries, seg.EndS)
		for i := 0; i < len(boundaries)-1; i++ {
			lo, hi := boundaries[i], boundaries[i+1]
			var words []domain.Word
			for _, w := range seg.Words {
				if w.StartS >= lo && w.StartS < hi {
					words = append(words, w)
				}
			}
			if len(words) == 0 {
				continue
			}
			out = append(out, domain.ASRSegment{
				StartS:          lo,
				EndS:            hi,
				Text:            joinWords(words),
				Words:           words,
				Quality:         seg.Quality,
				ReASR:           seg.ReASR,
				NeedsRefinement: seg.NeedsRefinement,
			})
		}
	}
	return out
}

func joinWords(words []domain.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
