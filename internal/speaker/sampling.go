package speaker

const (
	maxSampleWindows    = 10
	sampleWindowMaxS    = 3.0
	sampleWindowMinS    = 0.5
	sampleWindowHopS    = 1.5
	overMergedSingleTurnS = 300.0
	perSegmentChunkS    = 30.0
)

// turnSpan is the minimal shape sampling needs: a time range. It is
// satisfied by domain.DiarizationTurn via the caller's conversion.
type turnSpan struct {
	startS float64
	endS   float64
}

// sampleWindows implements the spec's sub-window sampling: up to 10
// windows, each at least 0.5s and at most 3s, hopping 1.5s across the
// cluster's turns in order. If the cluster is a single turn longer than
// 300s, it is instead split uniformly into ten chunks across its full
// span (the "over-merged single turn" case).
func sampleWindows(turns []turnSpan) []Window {
	if len(turns) == 1 && turns[0].endS-turns[0].startS > overMergedSingleTurnS {
		return uniformChunks(turns[0].startS, turns[0].endS, maxSampleWindows)
	}

	var windows []Window
	for _, t := range turns {
		start := t.startS
		for start < t.endS && len(windows) < maxSampleWindows {
			end := start + sampleWindowMaxS
			if end > t.endS {
				end = t.endS
			}
			if end-start >= sampleWindowMinS {
				windows = append(windows, Window{StartS: start, EndS: end})
			}
			start += sampleWindowHopS
		}
		if len(windows) >= maxSampleWindows {
			break
		}
	}
	return windows
}

// uniformChunks splits [start,end) into n equal-width chunks.
func uniformChunks(start, end float64, n int) []Window {
	total := end - start
	chunk := total / float64(n)
	windows := make([]Window, n)
	for i := 0; i < n; i++ {
		windows[i] = Window{StartS: start + float64(i)*chunk, EndS: start + float64(i+1)*chunk}
	}
	return windows
}

// chunk30s splits the cluster's full span into fixed 30s pieces for
// per-segment re-identification after an over-merge signal.
func chunk30s(turns []turnSpan) []Window {
	if len(turns) == 0 {
		return nil
	}
	start := turns[0].startS
	end := turns[len(turns)-1].endS
	var windows []Window
	for cursor := start; cursor < end; cursor += perSegmentChunkS {
		chunkEnd := cursor + perSegmentChunkS
		if chunkEnd > end {
			chunkEnd = end
		}
		windows = append(windows, Window{StartS: cursor, EndS: chunkEnd})
	}
	return windows
}
