package segment

import (
	"strings"
	"testing"

	"ingestpipe/internal/domain"
)

func word(start, end float64, text string) domain.Word {
	return domain.Word{StartS: start, EndS: end, Text: text}
}

func TestSplitPointsIncludesZeroAndTurnEdges(t *testing.T) {
	turns := []domain.DiarizationTurn{{StartS: 5, EndS: 10, ClusterID: 0}, {StartS: 10, EndS: 20, ClusterID: 1}}
	points := splitPoints(turns)
	want := []float64{0, 5, 10, 20}
	if len(points) != len(want) {
		t.Fatalf("expected %v, got %v", want, points)
	}
	for i, p := range want {
		if points[i] != p {
			t.Fatalf("expected %v, got %v", want, points)
		}
	}
}

func TestBoundarySplitCutsAtTurnEdge(t *testing.T) {
	segments := []domain.ASRSegment{
		{
			StartS: 0, EndS: 10,
			Words: []domain.Word{word(0, 1, "hello"), word(1, 2, "there"), word(6, 7, "world"), word(7, 8, "today")},
		},
	}
	points := []float64{0, 5, 10}
	split := boundarySplit(segments, points)
	if len(split) != 2 {
		t.Fatalf("expected 2 segments after split, got %d", len(split))
	}
	if split[0].StartS != 0 || split[0].EndS != 5 || split[0].Text != "hello there" {
		t.Fatalf("unexpected first split segment: %+v", split[0])
	}
	if split[1].StartS != 5 || split[1].EndS != 10 || split[1].Text != "world today" {
		t.Fatalf("unexpected second split segment: %+v", split[1])
	}
}

func TestBoundarySplitPassesThroughWhenNoInteriorPoint(t *testing.T) {
	segments := []domain.ASRSegment{{StartS: 0, EndS: 3, Words: []domain.Word{word(0, 1, "hi")}}}
	split := boundarySplit(segments, []float64{0, 3})
	if len(split) != 1 || split[0].StartS != 0 || split[0].EndS != 3 {
		t.Fatalf("expected passthrough, got %+v", split)
	}
}

func TestDominantSpeakerPicksLargestOverlap(t *testing.T) {
	speakerSegments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 2, Label: domain.KnownSpeaker("primary"), Confidence: 0.9},
		{StartS: 2, EndS: 10, Label: domain.GuestSpeaker(), Confidence: 0.7},
	}
	label, confidence := dominantSpeaker(1, 8, speakerSegments)
	if label.Kind() != domain.SpeakerGuest || confidence != 0.7 {
		t.Fatalf("expected guest with confidence 0.7, got %v %v", label, confidence)
	}
}

func TestAttributeWordsMarksOverlap(t *testing.T) {
	words := []domain.Word{word(0, 3, "hi")}
	speakerSegments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 2, Label: domain.KnownSpeaker("primary")},
		{StartS: 1, EndS: 4, Label: domain.GuestSpeaker()},
	}
	attributed := attributeWords(words, speakerSegments, DefaultAttributionConfig("primary"))
	if !attributed[0].IsOverlap {
		t.Fatalf("expected word to be marked overlapping")
	}
}

func TestAttributeWordsDemotesOverlapBelowBonusThreshold(t *testing.T) {
	words := []domain.Word{word(0, 3, "hi")}
	speakerSegments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 2.5, Label: domain.KnownSpeaker("primary"), Confidence: 0.63},
		{StartS: 1, EndS: 4, Label: domain.GuestSpeaker(), Confidence: 0.5},
	}
	cfg := DefaultAttributionConfig("primary")
	attributed := attributeWords(words, speakerSegments, cfg)
	if !attributed[0].IsOverlap {
		t.Fatalf("expected word to be marked overlapping")
	}
	if attributed[0].SpeakerLabel.Kind() != domain.SpeakerUnknown {
		t.Fatalf("expected overlap confidence below known_min_sim+overlap_bonus to fall back to UNKNOWN, got %v", attributed[0].SpeakerLabel)
	}
}

func TestAttributeWordsKeepsOverlapAboveBonusThreshold(t *testing.T) {
	words := []domain.Word{word(0, 3, "hi")}
	speakerSegments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 2.5, Label: domain.KnownSpeaker("primary"), Confidence: 0.99},
		{StartS: 1, EndS: 4, Label: domain.GuestSpeaker(), Confidence: 0.5},
	}
	cfg := DefaultAttributionConfig("primary")
	attributed := attributeWords(words, speakerSegments, cfg)
	if !attributed[0].SpeakerLabel.IsKnown() || attributed[0].SpeakerLabel.Name() != "primary" {
		t.Fatalf("expected overlap confidence above known_min_sim+overlap_bonus to keep its label, got %v", attributed[0].SpeakerLabel)
	}
}

func TestAttributeWordsUnknownWithoutOverlap(t *testing.T) {
	words := []domain.Word{word(100, 101, "hi")}
	attributed := attributeWords(words, nil, DefaultAttributionConfig("primary"))
	if attributed[0].SpeakerLabel.Kind() != domain.SpeakerUnknown {
		t.Fatalf("expected UNKNOWN for non-overlapping word")
	}
}

func TestGroupIntoRetrievalUnitsNeverCrossesSpeakerChange(t *testing.T) {
	segments := []domain.TranscriptSegment{
		{StartS: 0, EndS: 5, Text: strings.Repeat("a", 50), SpeakerLabel: domain.KnownSpeaker("primary")},
		{StartS: 5, EndS: 10, Text: strings.Repeat("b", 50), SpeakerLabel: domain.GuestSpeaker()},
	}
	units := groupIntoRetrievalUnits(segments)
	if len(units) != 2 {
		t.Fatalf("expected 2 units split by speaker change, got %d", len(units))
	}
}

func TestGroupIntoRetrievalUnitsMergesUnderTargetAndBreaksOverMax(t *testing.T) {
	makeSeg := func(start, end float64, n int) domain.TranscriptSegment {
		return domain.TranscriptSegment{StartS: start, EndS: end, Text: strings.Repeat("x", n), SpeakerLabel: domain.KnownSpeaker("primary")}
	}
	segments := []domain.TranscriptSegment{
		makeSeg(0, 1, 700),
		makeSeg(1, 2, 700), // combined > 1400, should start a new unit
	}
	units := groupIntoRetrievalUnits(segments)
	if len(units) != 2 {
		t.Fatalf("expected a break once combined length exceeds max, got %d units", len(units))
	}
}

func TestGroupIntoRetrievalUnitsDropsEmpty(t *testing.T) {
	segments := []domain.TranscriptSegment{
		{StartS: 0, EndS: 1, Text: "   ", SpeakerLabel: domain.KnownSpeaker("primary")},
		{StartS: 1, EndS: 2, Text: "real text", SpeakerLabel: domain.KnownSpeaker("primary")},
	}
	units := groupIntoRetrievalUnits(segments)
	if len(units) != 1 || units[0].Text != "real text" {
		t.Fatalf("expected whitespace-only segment dropped, got %+v", units)
	}
}

func TestMergeShortFragmentsFoldsIntoPredecessor(t *testing.T) {
	units := []domain.TranscriptSegment{
		{StartS: 0, EndS: 10, Text: strings.Repeat("a", 1200), SpeakerLabel: domain.KnownSpeaker("primary")},
		{StartS: 10, EndS: 11, Text: "tiny trailing bit", SpeakerLabel: domain.KnownSpeaker("primary")},
	}
	merged := mergeShortFragments(units, shortFragmentMergeChars)
	if len(merged) != 1 {
		t.Fatalf("expected short trailing fragment folded in, got %d units", len(merged))
	}
	if merged[0].EndS != 11 {
		t.Fatalf("expected merged unit's end to extend, got %v", merged[0].EndS)
	}
}

func TestBuildEndToEnd(t *testing.T) {
	asrSegments := []domain.ASRSegment{
		{StartS: 0, EndS: 10, Text: "hello world today friend",
			Words: []domain.Word{word(0, 1, "hello"), word(1, 2, "world"), word(6, 7, "today"), word(7, 8, "friend")}},
	}
	turns := []domain.DiarizationTurn{{StartS: 0, EndS: 5, ClusterID: 0}, {StartS: 5, EndS: 10, ClusterID: 1}}
	speakerSegments := []domain.SpeakerSegment{
		{StartS: 0, EndS: 5, Label: domain.KnownSpeaker("primary"), Confidence: 0.9, ClusterID: 0},
		{StartS: 5, EndS: 10, Label: domain.GuestSpeaker(), Confidence: 0.8, ClusterID: 1},
	}
	units := Build(asrSegments, turns, speakerSegments, DefaultAttributionConfig("primary"))
	if len(units) != 2 {
		t.Fatalf("expected 2 retrieval units (one per speaker), got %d: %+v", len(units), units)
	}
	if !units[0].SpeakerLabel.IsKnown() || units[0].SpeakerLabel.Name() != "primary" {
		t.Fatalf("expected first unit attributed to primary, got %v", units[0].SpeakerLabel)
	}
	if units[1].SpeakerLabel.Kind() != domain.SpeakerGuest {
		t.Fatalf("expected second unit attributed to guest, got %v", units[1].SpeakerLabel)
	}
}
