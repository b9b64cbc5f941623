package segment

import (
	"strings"

	"ingestpipe/internal/domain"
)

const (
	retrievalUnitTargetMinChars = 1100
	retrievalUnitTargetMaxChars = 1400
	shortFragmentMergeChars     = 200
)

// groupIntoRetrievalUnits merges consecutive same-speaker segments into
// units targeting 1100-1400 characters, preferring to break on sentence
// boundaries, and never crossing a speaker change. Very short trailing
// fragments are folded into the preceding unit.
func groupIntoRetrievalUnits(segments []domain.TranscriptSegment) []domain.TranscriptSegment {
	var units []domain.TranscriptSegment
	var current *domain.TranscriptSegment

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		if current == nil || !current.SpeakerLabel.Equal(seg.SpeakerLabel) {
			if current != nil {
				units = append(units, *current)
			}
			next := seg
			next.Text = text
			current = &next
			continue
		}

		if len(current.Text) >= retrievalUnitTargetMinChars && endsAtSentenceBoundary(current.Text) {
			units = append(units, *current)
			next := seg
			next.Text = text
			current = &next
			continue
		}

		candidate := current.Text + " " + text
		if len(candidate) > retrievalUnitTargetMaxChars {
			units = append(units, *current)
			next := seg
			next.Text = text
			current = &next
			continue
		}

		current.Text = candidate
		current.EndS = seg.EndS
		current.ReASR = current.ReASR || seg.ReASR
		current.IsOverlap = current.IsOverlap || seg.IsOverlap
		current.NeedsRefinement = current.NeedsRefinement || seg.NeedsRefinement
	}
	if current != nil {
		units = append(units, *current)
	}

	return mergeShortFragments(units, shortFragmentMergeChars)
}

func endsAtSentenceBoundary(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == '!' || last == '?'
}

// mergeShortFragments folds any unit shorter than minChars into the
// preceding unit, provided the speaker did not change.
func mergeShortFragments(units []domain.TranscriptSegment, minChars int) []domain.TranscriptSegment {
	var out []domain.TranscriptSegment
	for _, u := range units {
		if len(out) > 0 && len(u.Text) < minChars && out[len(out)-1].SpeakerLabel.Equal(u.SpeakerLabel) {
			last := &out[len(out)-1]
			last.Text = last.Text + " " + u.Text
			last.EndS = u.EndS
			last.ReASR = last.ReASR || u.ReASR
			last.IsOverlap = last.IsOverlap || u.IsOverlap
			last.NeedsRefinement = last.NeedsRefinement || u.NeedsRefinement
			continue
		}
		out = append(out, u)
	}
	return out
}
