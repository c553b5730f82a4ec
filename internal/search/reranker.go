package search

import "context"

// Reranker reorders fused candidates and optionally replaces their score.
// A configured non-default reranker replaces RRFScore in the final result
// rather than combining with it.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []*HydratedResult) ([]*HydratedResult, error)
}

// NoOpReranker preserves RRF order and score, the default.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

func (NoOpReranker) Rerank(_ context.Context, _ string, candidates []*HydratedResult) ([]*HydratedResult, error) {
	return candidates, nil
}
