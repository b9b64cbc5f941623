package speaker

import "context"

// Window is a time span to extract a voice embedding from.
type Window struct {
	StartS float64
	EndS   float64
}

// Embedder extracts one embedding vector per requested window from an audio
// file. Implementations (internal/embed) are responsible for batching
// windows internally; this package only asks for the result.
type Embedder interface {
	Embed(ctx context.Context, audioPath string, windows []Window) ([][]float32, error)
}
