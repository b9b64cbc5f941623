// Package embed implements the Embedding Batcher (C7): a GPU-resident
// singleton embedding model, batched by text count, with a known-speaker-
// only null-embedding policy and reranker OOM fallback.
package embed

import "context"

// Model is the embedding backend contract. Implementations return vectors as
// the backend produced them; Service normalises each one to unit L2 norm.
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Reranker is an optional cross-encoder used downstream of retrieval.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}
