package segment

import (
	"sort"
	"strings"

	"ingestpipe/internal/domain"
)

// AttributionConfig carries the thresholds word-level attribution applies
// when a word overlaps more than one diarization-derived speaker segment.
type AttributionConfig struct {
	KnownName    string
	KnownMinSim  float64
	GuestMinSim  float64
	OverlapBonus float64
}

// DefaultAttributionConfig matches speaker.DefaultConfig's stated defaults.
func DefaultAttributionConfig(knownName string) AttributionConfig {
	return AttributionConfig{
		KnownName:    knownName,
		KnownMinSim:  0.62,
		GuestMinSim:  0.82,
		OverlapBonus: 0.03,
	}
}

// dominantSpeaker finds the SpeakerSegment with the largest time overlap
// against [startS,endS) and returns its label and confidence. No overlap
// yields UNKNOWN at zero confidence.
func dominantSpeaker(startS, endS float64, speakerSegments []domain.SpeakerSegment) (domain.SpeakerLabel, float64) {
	var best domain.SpeakerSegment
	var bestOverlap float64
	for _, s := range speakerSegments {
		lo := max(startS, s.StartS)
		hi := min(endS, s.EndS)
		if overlap := hi - lo; overlap > bestOverlap {
			bestOverlap = overlap
			best = s
		}
	}
	if bestOverlap <= 0 {
		return domain.UnknownSpeaker(), 0
	}
	return best.Label, best.Confidence
}

// attributeWords assigns a per-word speaker label by largest-overlap
// diarization turn. Words overlapping more than one speaker segment are
// marked is_overlap=true and held to a stricter bar: the winning segment's
// confidence must clear its speaker kind's min-similarity threshold plus
// cfg.OverlapBonus, or the word falls back to UNKNOWN.
func attributeWords(words []domain.Word, speakerSegments []domain.SpeakerSegment, cfg AttributionConfig) []domain.Word {
	type overlapMatch struct {
		duration float64
		segment  domain.SpeakerSegment
	}
	out := make([]domain.Word, len(words))
	for i, w := range words {
		var matches []overlapMatch
		for _, s := range speakerSegments {
			lo := max(w.StartS, s.StartS)
			hi := min(w.EndS, s.EndS)
			if hi > lo {
				matches = append(matches, overlapMatch{duration: hi - lo, segment: s})
			}
		}
		word := w
		if len(matches) == 0 {
			word.SpeakerLabel = domain.UnknownSpeaker()
			out[i] = word
			continue
		}
		sort.Slice(matches, func(a, b int) bool { return matches[a].duration > matches[b].duration })
		best := matches[0]
		word.SpeakerLabel = best.segment.Label
		word.IsOverlap = len(matches) > 1

		if word.IsOverlap {
			minSim := cfg.GuestMinSim
			if strings.EqualFold(best.segment.Label.Name(), cfg.KnownName) {
				minSim = cfg.KnownMinSim
			}
			if best.segment.Confidence < minSim+cfg.OverlapBonus {
				word.SpeakerLabel = domain.UnknownSpeaker()
			}
		}
		out[i] = word
	}
	return out
}

// majoritySpeaker returns the label held by the largest number of words,
// for informational aggregation at the segment level.
func majoritySpeaker(words []domain.Word) domain.SpeakerLabel {
	counts := make(map[string]int)
	labels := make(map[string]domain.SpeakerLabel)
	order := make([]string, 0, len(words))
	for _, w := range words {
		key := w.SpeakerLabel.String()
		if _, seen := labels[key]; !seen {
			order = append(order, key)
		}
		labels[key] = w.SpeakerLabel
		counts[key]++
	}
	best := domain.UnknownSpeaker()
	bestCount := -1
	for _, key := range order {
		if counts[key] > bestCount {
			bestCount = counts[key]
			best = labels[key]
		}
	}
	return best
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
