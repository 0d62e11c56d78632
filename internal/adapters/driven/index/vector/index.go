// Package vector provides a brute-force cosine-similarity
// implementation of the VectorIndex port. One index instance holds the
// embeddings of exactly one run and is owned by that run's orchestrator.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores L2-normalised vectors and searches by dot product.
type Index struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	vectors   [][]float32
	byID      map[string]int
}

// New creates an index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive", domain.ErrInvalidInput)
	}
	return &Index{
		dimension: dimension,
		byID:      make(map[string]int),
	}, nil
}

// Upsert inserts or replaces vectors. Vectors are normalised on entry
// so Search reduces to a dot product.
func (x *Index) Upsert(_ context.Context, entries []driven.VectorEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, entry := range entries {
		if len(entry.Embedding) != x.dimension {
			return fmt.Errorf("%w: vector for %s has dimension %d, want %d",
				domain.ErrInvalidInput, entry.ChunkID, len(entry.Embedding), x.dimension)
		}
		vec := normalise(entry.Embedding)
		if pos, ok := x.byID[entry.ChunkID]; ok {
			x.vectors[pos] = vec
			continue
		}
		x.byID[entry.ChunkID] = len(x.ids)
		x.ids = append(x.ids, entry.ChunkID)
		x.vectors = append(x.vectors, vec)
	}
	return nil
}

// Search returns the k nearest neighbours by cosine similarity.
// Ties break by chunk ID for determinism.
func (x *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			domain.ErrInvalidInput, len(query), x.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalise(query)

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(x.ids))
	for i, id := range x.ids {
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: dot(x.vectors[i], q),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = nil
	x.vectors = nil
	x.byID = make(map[string]int)
	return nil
}

func normalise(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
