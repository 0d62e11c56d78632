package driven

import "context"

// RerankCandidate is a shortlist entry handed to the reranker.
type RerankCandidate struct {
	ID   string
	Text string
}

// RerankHit is a reranked result.
type RerankHit struct {
	ID    string
	Score float64
}

// Reranker re-scores a shortlist given the question and candidate text.
// This is an optional port: when nil, the ranking engine redistributes
// its fusion weight and skips the stage.
type Reranker interface {
	// Rerank scores candidates for relevance to the question.
	Rerank(ctx context.Context, question string, candidates []RerankCandidate) ([]RerankHit, error)
}
