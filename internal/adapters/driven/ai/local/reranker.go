package local

import (
	"context"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Reranker scores candidates by question-term overlap. It stands in for
// a cross-encoder model: cheap, deterministic and monotonic in shared
// vocabulary.
type Reranker struct{}

// NewReranker creates a local reranker.
func NewReranker() *Reranker {
	return &Reranker{}
}

// Rerank scores candidates for relevance to the question.
func (r *Reranker) Rerank(_ context.Context, question string, candidates []driven.RerankCandidate) ([]driven.RerankHit, error) {
	qTerms := termSet(question)

	hits := make([]driven.RerankHit, len(candidates))
	for i, cand := range candidates {
		cTerms := termSet(cand.Text)
		overlap := 0
		for term := range qTerms {
			if _, ok := cTerms[term]; ok {
				overlap++
			}
		}
		score := 0.0
		if len(qTerms) > 0 {
			score = float64(overlap) / float64(len(qTerms))
		}
		hits[i] = driven.RerankHit{ID: cand.ID, Score: score}
	}
	return hits, nil
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if len(token) < 3 {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}
