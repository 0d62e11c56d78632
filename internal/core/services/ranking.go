package services

import (
	"context"
	"sort"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

// Ranker runs the three-stage scoring cascade: a lexical prefilter over
// the whole corpus, cosine similarity over the lexical survivors, and an
// optional rerank of the shortlist. Component scores are min-max
// normalised within the candidate set before weighted fusion; a degraded
// optional stage has its weight redistributed across the others.
type Ranker struct {
	search   driven.SearchEngine
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	reranker driven.Reranker
	cfg      domain.RunConfig
}

// NewRanker creates a ranker over the run's indexes and providers.
// reranker may be nil, in which case the rerank stage is skipped.
func NewRanker(search driven.SearchEngine, vector driven.VectorIndex, embedder driven.EmbeddingService, reranker driven.Reranker, cfg domain.RunConfig) *Ranker {
	return &Ranker{
		search:   search,
		vector:   vector,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Rank scores the indexed chunks against the question and returns the
// fused candidate list. Ordering is fully deterministic: fused score
// descending, then message date descending, then message ID ascending,
// then chunk position ascending. The lexical stage is mandatory and its
// failure is returned; vector and rerank failures degrade the cascade.
func (r *Ranker) Rank(ctx context.Context, question string, chunks map[string]domain.Chunk, dateOf func(messageID string) time.Time) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	lexHits, err := r.search.Search(ctx, question, r.cfg.LexicalTopK)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "search engine", Phase: domain.StatusRanking, Err: err}
	}
	if len(lexHits) == 0 {
		return nil, nil
	}

	lexical := make(map[string]float64, len(lexHits))
	survivorIDs := make([]string, 0, len(lexHits))
	for _, hit := range lexHits {
		if _, ok := chunks[hit.ChunkID]; !ok {
			continue
		}
		lexical[hit.ChunkID] = hit.Score
		survivorIDs = append(survivorIDs, hit.ChunkID)
	}

	vectorScores, vectorOK := r.vectorStage(ctx, question, lexical)

	// Shortlist: vector survivors when available, else the lexical top
	// capped at the same size.
	var shortlist []string
	if vectorOK {
		for _, id := range survivorIDs {
			if _, ok := vectorScores[id]; ok {
				shortlist = append(shortlist, id)
			}
		}
	}
	if len(shortlist) == 0 {
		vectorOK = false
		shortlist = survivorIDs
		if len(shortlist) > r.cfg.VectorTopK {
			// survivorIDs arrive lexically score-ordered from the engine.
			shortlist = shortlist[:r.cfg.VectorTopK]
		}
	}

	rerankScores, rerankOK := r.rerankStage(ctx, question, shortlist, chunks)

	lexNorm := minMax(shortlist, lexical)
	vecNorm := minMax(shortlist, vectorScores)
	rrNorm := minMax(shortlist, rerankScores)
	weights := effectiveWeights(r.cfg.Weights, vectorOK, rerankOK)

	ranked := make([]domain.Chunk, 0, len(shortlist))
	for _, id := range shortlist {
		chunk := chunks[id]
		lex := lexical[id]
		chunk.Lexical = &lex
		if vectorOK {
			if v, ok := vectorScores[id]; ok {
				vv := v
				chunk.Vector = &vv
			}
		}
		if rerankOK {
			if v, ok := rerankScores[id]; ok {
				rr := v
				chunk.Rerank = &rr
			}
		}
		chunk.Fused = weights.Lexical*lexNorm[id] + weights.Vector*vecNorm[id] + weights.Rerank*rrNorm[id]
		ranked = append(ranked, chunk)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		da, db := dateOf(a.MessageID), dateOf(b.MessageID)
		if !da.Equal(db) {
			return da.After(db)
		}
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Position < b.Position
	})
	return ranked, nil
}

// vectorStage embeds the question and scores the lexical survivors by
// cosine similarity. Any failure degrades the stage rather than the run.
func (r *Ranker) vectorStage(ctx context.Context, question string, lexical map[string]float64) (map[string]float64, bool) {
	qvec, err := retryCall(ctx, "embedding service", r.cfg.MaxRetries, r.cfg.RetryBaseDelay,
		func(ctx context.Context) ([]float32, error) {
			return r.embedder.Embed(ctx, question)
		})
	if err != nil {
		logger.Warn("vector stage degraded, question embedding failed: %v", err)
		return nil, false
	}

	hits, err := r.vector.Search(ctx, qvec, r.cfg.LexicalTopK)
	if err != nil {
		logger.Warn("vector stage degraded, similarity search failed: %v", err)
		return nil, false
	}

	scores := make(map[string]float64)
	for _, hit := range hits {
		if _, survivor := lexical[hit.ChunkID]; !survivor {
			continue
		}
		scores[hit.ChunkID] = hit.Similarity
		if len(scores) >= r.cfg.VectorTopK {
			break
		}
	}
	return scores, true
}

// rerankStage re-scores the shortlist when a reranker is configured and
// enabled. Failures after retries degrade the stage.
func (r *Ranker) rerankStage(ctx context.Context, question string, shortlist []string, chunks map[string]domain.Chunk) (map[string]float64, bool) {
	if !r.cfg.EnableRerank || r.reranker == nil {
		return nil, false
	}

	candidates := make([]driven.RerankCandidate, len(shortlist))
	for i, id := range shortlist {
		candidates[i] = driven.RerankCandidate{ID: id, Text: chunks[id].Text}
	}

	hits, err := retryCall(ctx, "reranker", r.cfg.MaxRetries, r.cfg.RetryBaseDelay,
		func(ctx context.Context) ([]driven.RerankHit, error) {
			return r.reranker.Rerank(ctx, question, candidates)
		})
	if err != nil {
		logger.Warn("rerank stage degraded: %v", err)
		return nil, false
	}

	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		scores[hit.ID] = hit.Score
	}
	return scores, true
}

// effectiveWeights folds stage degradation into the configured weights.
// A degraded vector stage loses its weight before the usual rerank-aware
// normalisation redistributes whatever remains.
func effectiveWeights(w domain.RankWeights, vectorOK, rerankOK bool) domain.RankWeights {
	if !vectorOK {
		w.Vector = 0
	}
	return w.Normalised(rerankOK)
}

// minMax normalises scores to [0,1] within the candidate set. Missing
// scores map to zero; a constant component maps every candidate to one.
func minMax(ids []string, scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	if len(scores) == 0 {
		for _, id := range ids {
			out[id] = 0
		}
		return out
	}

	first := true
	var lo, hi float64
	for _, id := range ids {
		s, ok := scores[id]
		if !ok {
			continue
		}
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	for _, id := range ids {
		s, ok := scores[id]
		switch {
		case !ok:
			out[id] = 0
		case hi == lo:
			out[id] = 1
		default:
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}
