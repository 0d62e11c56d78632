package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Handwritten stubs keep the cascade fully deterministic.

type stubSearch struct {
	hits []driven.SearchHit
	err  error
}

func (s *stubSearch) Index(context.Context, domain.Chunk) error { return nil }
func (s *stubSearch) Search(context.Context, string, int) ([]driven.SearchHit, error) {
	return s.hits, s.err
}
func (s *stubSearch) Close() error { return nil }

type stubVector struct {
	hits []driven.VectorHit
	err  error
}

func (v *stubVector) Upsert(context.Context, []driven.VectorEntry) error { return nil }
func (v *stubVector) Search(context.Context, []float32, int) ([]driven.VectorHit, error) {
	return v.hits, v.err
}
func (v *stubVector) Close() error { return nil }

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}
func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := e.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
func (e *stubEmbedder) Dimensions() int   { return 3 }
func (e *stubEmbedder) ModelName() string { return "stub" }
func (e *stubEmbedder) Close() error      { return nil }

type stubReranker struct {
	hits []driven.RerankHit
	err  error
}

func (r *stubReranker) Rerank(context.Context, string, []driven.RerankCandidate) ([]driven.RerankHit, error) {
	return r.hits, r.err
}

func rankFixtureChunks() map[string]domain.Chunk {
	return map[string]domain.Chunk{
		"m1_0": {ID: "m1_0", MessageID: "m1", Position: 0, Text: "alpha"},
		"m1_1": {ID: "m1_1", MessageID: "m1", Position: 1, Text: "beta"},
		"m2_0": {ID: "m2_0", MessageID: "m2", Position: 0, Text: "gamma"},
	}
}

func fixedDates(messageID string) time.Time {
	dates := map[string]time.Time{
		"m1": time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
		"m2": time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	return dates[messageID]
}

func rankConfig() domain.RunConfig {
	cfg := domain.DefaultRunConfig("question")
	cfg.MaxRetries = 1
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func TestRanker_FusesAllThreeComponents(t *testing.T) {
	cfg := rankConfig()
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m1_0", Score: 2.0},
		{ChunkID: "m1_1", Score: 1.0},
		{ChunkID: "m2_0", Score: 0.5},
	}}
	vector := &stubVector{hits: []driven.VectorHit{
		{ChunkID: "m2_0", Similarity: 0.9},
		{ChunkID: "m1_0", Similarity: 0.8},
		{ChunkID: "m1_1", Similarity: 0.1},
	}}
	reranker := &stubReranker{hits: []driven.RerankHit{
		{ID: "m1_0", Score: 1.0},
		{ID: "m1_1", Score: 0.2},
		{ID: "m2_0", Score: 0.4},
	}}

	r := NewRanker(search, vector, &stubEmbedder{}, reranker, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// m1_0: best lexical and rerank, second vector; must win.
	assert.Equal(t, "m1_0", ranked[0].ID)
	require.NotNil(t, ranked[0].Lexical)
	require.NotNil(t, ranked[0].Vector)
	require.NotNil(t, ranked[0].Rerank)
	assert.InDelta(t, 2.0, *ranked[0].Lexical, 1e-9)

	// Fused scores are non-increasing.
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Fused, ranked[i].Fused)
	}
}

func TestRanker_MoreRelevantNeverRanksLower(t *testing.T) {
	// m1_0 dominates m1_1 on every component, so it must rank above it.
	cfg := rankConfig()
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m1_0", Score: 3.0},
		{ChunkID: "m1_1", Score: 1.0},
	}}
	vector := &stubVector{hits: []driven.VectorHit{
		{ChunkID: "m1_0", Similarity: 0.9},
		{ChunkID: "m1_1", Similarity: 0.3},
	}}
	reranker := &stubReranker{hits: []driven.RerankHit{
		{ID: "m1_0", Score: 0.8},
		{ID: "m1_1", Score: 0.2},
	}}

	r := NewRanker(search, vector, &stubEmbedder{}, reranker, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ranked), 2)
	assert.Equal(t, "m1_0", ranked[0].ID)
}

func TestRanker_RerankDisabledRedistributesWeight(t *testing.T) {
	cfg := rankConfig()
	cfg.EnableRerank = false
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m1_0", Score: 2.0},
		{ChunkID: "m2_0", Score: 1.0},
	}}
	vector := &stubVector{hits: []driven.VectorHit{
		{ChunkID: "m1_0", Similarity: 0.9},
		{ChunkID: "m2_0", Similarity: 0.2},
	}}

	r := NewRanker(search, vector, &stubEmbedder{}, &stubReranker{}, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// Top of both components still normalises to a full score of 1.
	assert.Equal(t, "m1_0", ranked[0].ID)
	assert.InDelta(t, 1.0, ranked[0].Fused, 1e-9)
	assert.Nil(t, ranked[0].Rerank)
}

func TestRanker_RerankFailureDegrades(t *testing.T) {
	cfg := rankConfig()
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m1_0", Score: 2.0},
		{ChunkID: "m2_0", Score: 1.0},
	}}
	vector := &stubVector{hits: []driven.VectorHit{
		{ChunkID: "m1_0", Similarity: 0.9},
		{ChunkID: "m2_0", Similarity: 0.2},
	}}
	reranker := &stubReranker{err: domain.TransientError("reranker", errors.New("timeout"))}

	r := NewRanker(search, vector, &stubEmbedder{}, reranker, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err, "optional stage failure must not fail ranking")
	require.Len(t, ranked, 2)
	assert.Nil(t, ranked[0].Rerank)
}

func TestRanker_EmbeddingFailureDegradesToLexical(t *testing.T) {
	cfg := rankConfig()
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m1_0", Score: 2.0},
		{ChunkID: "m2_0", Score: 1.0},
	}}

	r := NewRanker(search, &stubVector{}, &stubEmbedder{err: errors.New("model gone")}, nil, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "m1_0", ranked[0].ID)
	assert.Nil(t, ranked[0].Vector)
}

func TestRanker_LexicalFailureIsFatal(t *testing.T) {
	cfg := rankConfig()
	search := &stubSearch{err: errors.New("index corrupt")}

	r := NewRanker(search, &stubVector{}, &stubEmbedder{}, nil, cfg)
	_, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.Error(t, err)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "search engine", perr.Provider)
}

func TestRanker_DeterministicTieBreaks(t *testing.T) {
	// Identical scores everywhere: newest message first, then message ID,
	// then position.
	cfg := rankConfig()
	cfg.EnableRerank = false
	search := &stubSearch{hits: []driven.SearchHit{
		{ChunkID: "m2_0", Score: 1.0},
		{ChunkID: "m1_1", Score: 1.0},
		{ChunkID: "m1_0", Score: 1.0},
	}}
	vector := &stubVector{hits: []driven.VectorHit{
		{ChunkID: "m1_0", Similarity: 0.5},
		{ChunkID: "m1_1", Similarity: 0.5},
		{ChunkID: "m2_0", Similarity: 0.5},
	}}

	r := NewRanker(search, vector, &stubEmbedder{}, nil, cfg)
	ranked, err := r.Rank(context.Background(), "question", rankFixtureChunks(), fixedDates)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// m1 is dated 2025-02-02, m2 2025-02-01.
	assert.Equal(t, []string{"m1_0", "m1_1", "m2_0"},
		[]string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestEffectiveWeights_VectorDegradedRedistributes(t *testing.T) {
	w := effectiveWeights(domain.RankWeights{Lexical: 0.3, Vector: 0.4, Rerank: 0.3}, false, true)
	assert.Zero(t, w.Vector)
	assert.InDelta(t, 0.5, w.Lexical, 1e-9)
	assert.InDelta(t, 0.5, w.Rerank, 1e-9)
	assert.InDelta(t, 1.0, w.Lexical+w.Vector+w.Rerank, 1e-9)
}

func TestRanker_EmptyCorpus(t *testing.T) {
	r := NewRanker(&stubSearch{}, &stubVector{}, &stubEmbedder{}, nil, rankConfig())
	ranked, err := r.Rank(context.Background(), "question", map[string]domain.Chunk{}, fixedDates)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
