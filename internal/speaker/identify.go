// Package speaker implements Speaker Identification (C5): matching
// diarization turns to enrolled voice profiles by embedding similarity,
// detecting and correcting over-merged clusters, and smoothing isolated
// mislabeled segments.
package speaker

import (
	"context"
	"sort"

	"ingestpipe/internal/domain"
)

// Service drives the identification algorithm over one audio file's
// diarization turns.
type Service struct {
	embedder Embedder
	cfg      Config
}

// NewService constructs a speaker identification service.
func NewService(embedder Embedder, cfg Config) *Service {
	return &Service{embedder: embedder, cfg: cfg}
}

// Flip records one smoothing-pass correction, for the caller to log.
type Flip struct {
	StartS  float64
	EndS    float64
	From    domain.SpeakerLabel
	To      domain.SpeakerLabel
}

// Identify implements the C5 contract: identify(audio, turns, profiles,
// config) -> [SpeakerSegment]. It never returns an error; an embedding
// failure degrades the affected cluster to UNKNOWN and the caller is told
// via the returned degraded bool.
func (s *Service) Identify(ctx context.Context, audioPath string, turns []domain.DiarizationTurn, profiles []domain.VoiceProfile) ([]domain.SpeakerSegment, []Flip, bool) {
	clusters := groupByCluster(turns)
	clusterIDs := make([]int, 0, len(clusters))
	for id := range clusters {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	var knownProfile *domain.VoiceProfile
	for i := range profiles {
		if profiles[i].Name == s.cfg.KnownName {
			knownProfile = &profiles[i]
			break
		}
	}

	var segments []domain.SpeakerSegment
	degraded := false
	for _, id := range clusterIDs {
		clusterTurns := clusters[id]
		clusterSegments, clusterDegraded := s.identifyCluster(ctx, audioPath, id, clusterTurns, profiles, knownProfile)
		segments = append(segments, clusterSegments...)
		degraded = degraded || clusterDegraded
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].StartS < segments[j].StartS })
	flips := smooth(segments, s.cfg.SmoothingMaxDurationS)
	return segments, flips, degraded
}

func groupByCluster(turns []domain.DiarizationTurn) map[int][]domain.DiarizationTurn {
	clusters := make(map[int][]domain.DiarizationTurn)
	for _, t := range turns {
		clusters[t.ClusterID] = append(clusters[t.ClusterID], t)
	}
	for id := range clusters {
		sort.Slice(clusters[id], func(i, j int) bool { return clusters[id][i].StartS < clusters[id][j].StartS })
	}
	return clusters
}

func totalDuration(turns []domain.DiarizationTurn) float64 {
	var sum float64
	for _, t := range turns {
		sum += t.EndS - t.StartS
	}
	return sum
}

func toSpans(turns []domain.DiarizationTurn) []turnSpan {
	spans := make([]turnSpan, len(turns))
	for i, t := range turns {
		spans[i] = turnSpan{startS: t.StartS, endS: t.EndS}
	}
	return spans
}

func unknownSegments(clusterID int, turns []domain.DiarizationTurn) []domain.SpeakerSegment {
	out := make([]domain.SpeakerSegment, len(turns))
	for i, t := range turns {
		out[i] = domain.SpeakerSegment{StartS: t.StartS, EndS: t.EndS, Label: domain.UnknownSpeaker(), Confidence: 0, ClusterID: clusterID}
	}
	return out
}

// identifyCluster runs steps 2a-2f of the spec's algorithm for one cluster.
func (s *Service) identifyCluster(ctx context.Context, audioPath string, clusterID int, turns []domain.DiarizationTurn, profiles []domain.VoiceProfile, knownProfile *domain.VoiceProfile) ([]domain.SpeakerSegment, bool) {
	duration := totalDuration(turns)
	if duration < s.cfg.MinClusterDurationS {
		return unknownSegments(clusterID, turns), false
	}

	spans := toSpans(turns)
	windows := sampleWindows(spans)
	embeddings, err := s.embedder.Embed(ctx, audioPath, windows)
	if err != nil || len(embeddings) == 0 {
		return unknownSegments(clusterID, turns), true
	}

	isOverMergedSingleTurn := len(turns) == 1 && turns[0].EndS-turns[0].StartS > overMergedSingleTurnS

	// Build the cluster's evidence list: one embedding entry per window,
	// plus an over-merge marker appended in place of the Python
	// implementation's ('split_cluster', None, None) sentinel tuple when the
	// variance/range signal fires.
	evidence := make([]domain.ClusterEvidence, 0, len(embeddings))
	for _, e := range embeddings {
		evidence = append(evidence, domain.NewEmbeddingEvidence(e))
	}

	var varianceTriggered bool
	if knownProfile != nil && len(embeddings) >= 3 {
		similarities := make([]float64, len(embeddings))
		for i, e := range embeddings {
			similarities[i] = cosineSimilarity(e, knownProfile.Centroid)
		}
		varianceTriggered = variance(similarities) > 0.05
		rangeTriggered := spread(similarities) > 0.30
		if varianceTriggered || rangeTriggered {
			evidence = append(evidence, domain.NewOverMergeMarker())
		}
	}

	if clusterIsFlaggedForSplit(evidence) {
		return s.reidentifyPerSegment(ctx, audioPath, clusterID, spans, *knownProfile, varianceTriggered)
	}

	if isOverMergedSingleTurn {
		return s.reidentifyPerSegment(ctx, audioPath, clusterID, spans, valueOrZero(knownProfile), false)
	}

	// Step e: whole-cluster mean-embedding attribution, built only from the
	// genuine embedding entries in the evidence list (a marker, if present,
	// must never be averaged into the centroid).
	mean := meanVector(onlyEmbeddings(evidence))
	label, confidence, margin := attribute(mean, profiles, durationBoost(duration), s.cfg.AttributionMargin)
	out := make([]domain.SpeakerSegment, len(turns))
	for i, t := range turns {
		out[i] = domain.SpeakerSegment{
			StartS: t.StartS, EndS: t.EndS, Label: label, Confidence: confidence, Margin: margin,
			ClusterID: clusterID, VoiceEmbedding: mean,
		}
	}
	return out, false
}

// clusterIsFlaggedForSplit reports whether the over-merge marker is present
// in a cluster's evidence list.
func clusterIsFlaggedForSplit(evidence []domain.ClusterEvidence) bool {
	for _, e := range evidence {
		if e.IsOverMergeMarker() {
			return true
		}
	}
	return false
}

// onlyEmbeddings extracts the real embedding vectors from an evidence list,
// skipping any over-merge marker.
func onlyEmbeddings(evidence []domain.ClusterEvidence) [][]float32 {
	out := make([][]float32, 0, len(evidence))
	for _, e := range evidence {
		if vec, ok := e.Embedding(); ok {
			out = append(out, vec)
		}
	}
	return out
}

func valueOrZero(p *domain.VoiceProfile) domain.VoiceProfile {
	if p == nil {
		return domain.VoiceProfile{}
	}
	return *p
}

// attribute picks the best-matching profile for a cluster's mean embedding,
// applying the duration boost and requiring both the profile's own
// threshold and the attribution margin over the next-best distinct
// similarity.
func attribute(mean []float32, profiles []domain.VoiceProfile, boost, margin float64) (domain.SpeakerLabel, float64, float64) {
	if len(profiles) == 0 {
		return domain.UnknownSpeaker(), 0, 0
	}
	type scored struct {
		profile domain.VoiceProfile
		raw     float64
		boosted float64
	}
	scores := make([]scored, len(profiles))
	for i, p := range profiles {
		raw := cosineSimilarity(mean, p.Centroid)
		scores[i] = scored{profile: p, raw: raw, boosted: raw * boost}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].boosted > scores[j].boosted })

	best := scores[0]
	if best.raw < best.profile.Threshold {
		return domain.UnknownSpeaker(), best.raw, 0
	}

	var secondBest float64
	for _, sc := range scores[1:] {
		if sc.profile.Name != best.profile.Name {
			secondBest = sc.boosted
			break
		}
	}
	gap := best.boosted - secondBest
	if gap < margin {
		return domain.UnknownSpeaker(), best.raw, gap
	}
	return domain.KnownSpeaker(best.profile.Name), best.raw, gap
}

// reidentifyPerSegment implements step f: chunk the cluster into 30s pieces
// and classify each independently against the known centroid, since the
// cluster as a whole is suspected of mixing two speakers.
func (s *Service) reidentifyPerSegment(ctx context.Context, audioPath string, clusterID int, spans []turnSpan, knownProfile domain.VoiceProfile, varianceTriggered bool) ([]domain.SpeakerSegment, bool) {
	chunks := chunk30s(spans)
	if len(chunks) == 0 {
		return nil, true
	}
	embeddings, err := s.embedder.Embed(ctx, audioPath, chunks)
	if err != nil || len(embeddings) != len(chunks) {
		out := make([]domain.SpeakerSegment, len(chunks))
		for i, c := range chunks {
			out[i] = domain.SpeakerSegment{StartS: c.StartS, EndS: c.EndS, Label: domain.UnknownSpeaker(), ClusterID: clusterID}
		}
		return out, true
	}

	threshold := s.cfg.perSegmentThreshold(varianceTriggered)
	out := make([]domain.SpeakerSegment, len(chunks))
	for i, c := range chunks {
		sim := cosineSimilarity(embeddings[i], knownProfile.Centroid)
		label := domain.GuestSpeaker()
		if sim >= threshold {
			label = domain.KnownSpeaker(knownProfile.Name)
		}
		out[i] = domain.SpeakerSegment{StartS: c.StartS, EndS: c.EndS, Label: label, Confidence: sim, ClusterID: clusterID, VoiceEmbedding: embeddings[i]}
	}
	return out, false
}

// smooth implements step g: flip an isolated short segment to match
// agreeing neighbors on both sides.
func smooth(segments []domain.SpeakerSegment, maxDurationS float64) []Flip {
	var flips []Flip
	for i := 1; i < len(segments)-1; i++ {
		prev, cur, next := segments[i-1], segments[i], segments[i+1]
		if !prev.Label.Equal(next.Label) {
			continue
		}
		if cur.Label.Equal(prev.Label) {
			continue
		}
		if cur.EndS-cur.StartS >= maxDurationS {
			continue
		}
		flips = append(flips, Flip{StartS: cur.StartS, EndS: cur.EndS, From: cur.Label, To: prev.Label})
		segments[i].Label = prev.Label
	}
	return flips
}
