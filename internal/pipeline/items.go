package pipeline

import (
	"strings"

	"ingestpipe/internal/domain"
)

// acquiredItem crosses Q1: one video with its downloaded, validated audio.
type acquiredItem struct {
	desc  domain.VideoDescriptor
	audio domain.AudioArtifact
}

// transcribedItem crosses Q2: one video fully processed through
// ASR→diarization→speaker ID→segment building→embedding, ready to persist.
type transcribedItem struct {
	desc     domain.VideoDescriptor
	audio    domain.AudioArtifact
	segments []domain.TranscriptSegment

	refined         bool
	asrFellBack     bool
	diarizeDegraded bool
	speakerDegraded bool

	processingTimeS float64
}

// interviewMarkers are title/tag keywords used to pick the ASR router's
// "interview" preset before any transcript exists to run the lexical
// conversational heuristic against — the router needs this classification
// up front, while internal/diarize's heuristic only becomes available once
// stage-1 text exists, so the two signals are deliberately different.
var interviewMarkers = []string{"interview", "conversation", "podcast", "q&a", "in conversation with"}

func classifyIsInterview(desc domain.VideoDescriptor) bool {
	haystacks := append([]string{desc.Title}, desc.Tags...)
	for _, h := range haystacks {
		lower := strings.ToLower(h)
		for _, marker := range interviewMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
