package embed

import (
	"context"
	"strings"
)

// RerankerVariants lists candidate reranker model variants in order of
// preference, largest (most accurate) first.
type RerankerVariants []string

// LoadRerankerWithFallback tries each variant in order, falling back to the
// next on an out-of-memory load error. It returns the first reranker that
// loads successfully along with the variant name used, or the final error
// if every variant failed.
func LoadRerankerWithFallback(ctx context.Context, variants RerankerVariants, load func(ctx context.Context, variant string) (Reranker, error)) (Reranker, string, error) {
	var lastErr error
	for _, variant := range variants {
		reranker, err := load(ctx, variant)
		if err == nil {
			return reranker, variant, nil
		}
		lastErr = err
		if !isOOM(err) {
			return nil, "", err
		}
	}
	return nil, "", lastErr
}

func isOOM(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "out of memory") || strings.Contains(text, "cuda oom") || strings.Contains(text, "oom")
}
