package segment

import "ingestpipe/internal/domain"

// Build implements the C6 contract: given ASR segments (with word
// timestamps), diarization turns, and the speaker segments produced by C5,
// produce the retrieval-ready TranscriptSegments with embedding left nil
// for the embedding batcher to fill in.
func Build(asrSegments []domain.ASRSegment, turns []domain.DiarizationTurn, speakerSegments []domain.SpeakerSegment, cfg AttributionConfig) []domain.TranscriptSegment {
	points := splitPoints(turns)
	split := boundarySplit(asrSegments, points)

	transcriptSegments := make([]domain.TranscriptSegment, 0, len(split))
	for _, seg := range split {
		words := attributeWords(seg.Words, speakerSegments, cfg)
		label, confidence := dominantSpeaker(seg.StartS, seg.EndS, speakerSegments)
		if label.Kind() == domain.SpeakerUnknown {
			if majority := majoritySpeaker(words); majority.Kind() != domain.SpeakerUnknown {
				label = majority
			}
		}
		isOverlap := false
		for _, w := range words {
			if w.IsOverlap {
				isOverlap = true
				break
			}
		}
		transcriptSegments = append(transcriptSegments, domain.TranscriptSegment{
			StartS:            seg.StartS,
			EndS:              seg.EndS,
			Text:              seg.Text,
			SpeakerLabel:      label,
			SpeakerConfidence: confPtr(confidence),
			Quality:           seg.Quality,
			ReASR:             seg.ReASR,
			IsOverlap:         isOverlap,
			NeedsRefinement:   seg.NeedsRefinement,
		})
	}

	return groupIntoRetrievalUnits(transcriptSegments)
}

func confPtr(v float64) *float64 { return &v }
