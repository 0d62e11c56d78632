package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

func TestIndex_NearestByCosine(t *testing.T) {
	x, err := New(3)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []driven.VectorEntry{
		{ChunkID: "east", Embedding: []float32{1, 0, 0}},
		{ChunkID: "north", Embedding: []float32{0, 1, 0}},
		{ChunkID: "northeast", Embedding: []float32{1, 1, 0}},
	}))

	hits, err := x.Search(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "east", hits[0].ChunkID)
	assert.Equal(t, "northeast", hits[1].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndex_MagnitudeDoesNotMatter(t *testing.T) {
	x, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []driven.VectorEntry{
		{ChunkID: "small", Embedding: []float32{0.001, 0}},
		{ChunkID: "large", Embedding: []float32{1000, 0}},
	}))

	hits, err := x.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, hits[0].Similarity, hits[1].Similarity, 1e-6)
	// Identical similarity falls back to ID order.
	assert.Equal(t, "large", hits[0].ChunkID)
	assert.Equal(t, "small", hits[1].ChunkID)
}

func TestIndex_UpsertReplacesVector(t *testing.T) {
	x, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, x.Upsert(ctx, []driven.VectorEntry{
		{ChunkID: "a", Embedding: []float32{1, 0}},
	}))
	require.NoError(t, x.Upsert(ctx, []driven.VectorEntry{
		{ChunkID: "a", Embedding: []float32{0, 1}},
	}))

	hits, err := x.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	x, err := New(3)
	require.NoError(t, err)
	ctx := context.Background()

	err = x.Upsert(ctx, []driven.VectorEntry{{ChunkID: "a", Embedding: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = x.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_EmptyAndZeroK(t *testing.T) {
	x, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	hits, err := x.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, x.Upsert(ctx, []driven.VectorEntry{
		{ChunkID: "a", Embedding: []float32{1, 0}},
	}))
	hits, err = x.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
