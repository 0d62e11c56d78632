package bm25

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

func indexDocs(t *testing.T, e *Engine, docs map[string]string) {
	t.Helper()
	for id, text := range docs {
		require.NoError(t, e.Index(context.Background(), domain.Chunk{ID: id, Text: text}))
	}
}

func TestEngine_RanksTermMatchesAboveNoise(t *testing.T) {
	e := New()
	indexDocs(t, e, map[string]string{
		"a": "the return authorisation for the machine was approved",
		"b": "lunch menu for the office party next week",
		"c": "machine return shipping label attached for the machine",
	})

	hits, err := e.Search(context.Background(), "machine return", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2, "documents without any query term must not match")

	// "c" mentions machine twice and is the stronger match.
	assert.Equal(t, "c", hits[0].ChunkID)
	assert.Equal(t, "a", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestEngine_RareTermsOutweighCommonOnes(t *testing.T) {
	e := New()
	indexDocs(t, e, map[string]string{
		"a": "shipping shipping shipping shipping",
		"b": "shipping waybill",
		"c": "shipping update",
		"d": "shipping notice",
	})

	// "waybill" appears in one document only; it dominates the score.
	hits, err := e.Search(context.Background(), "waybill", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ChunkID)
}

func TestEngine_ReindexReplacesDocument(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.Index(ctx, domain.Chunk{ID: "a", Text: "original waybill text"}))
	require.NoError(t, e.Index(ctx, domain.Chunk{ID: "a", Text: "replacement pallet text"}))

	hits, err := e.Search(ctx, "waybill", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "old terms must not match after reindex")

	hits, err = e.Search(ctx, "pallet", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestEngine_LimitAndTieOrder(t *testing.T) {
	e := New()
	indexDocs(t, e, map[string]string{
		"c": "pallet",
		"a": "pallet",
		"b": "pallet",
	})

	hits, err := e.Search(context.Background(), "pallet", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// Equal scores break ties by chunk ID.
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
}

func TestEngine_RepeatedQueryTermsScoreOnce(t *testing.T) {
	e := New()
	indexDocs(t, e, map[string]string{
		"a": "crate dimensions attached",
		"b": "pallet dimensions attached",
	})
	ctx := context.Background()

	single, err := e.Search(ctx, "crate", 10)
	require.NoError(t, err)
	repeated, err := e.Search(ctx, "crate crate crate", 10)
	require.NoError(t, err)

	require.Len(t, single, 1)
	require.Len(t, repeated, 1)
	assert.InDelta(t, single[0].Score, repeated[0].Score, 1e-12)
}

func TestEngine_EmptyInputs(t *testing.T) {
	e := New()
	ctx := context.Background()

	hits, err := e.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "empty index returns no hits")

	indexDocs(t, e, map[string]string{"a": "some text"})
	hits, err = e.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "query without tokens returns no hits")

	hits, err = e.Search(ctx, "text", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "non-positive limit returns no hits")
}

func TestTokenise_KeepsHyphenatedIdentifiers(t *testing.T) {
	tokens := Tokenise("Created RMA-2025-0847, ship ASAP!")
	assert.Contains(t, tokens, "rma-2025-0847")
	assert.Contains(t, tokens, "ship")
	assert.NotContains(t, tokens, "!")
}
