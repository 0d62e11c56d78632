package driven

import "context"

// VectorEntry pairs a chunk identifier with its embedding.
type VectorEntry struct {
	ChunkID   string
	Embedding []float32
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}

// VectorIndex provides semantic similarity search operations. Each run
// owns its own instance exclusively; implementations need no cross-run
// locking.
type VectorIndex interface {
	// Upsert inserts or replaces vectors for the given chunk IDs.
	Upsert(ctx context.Context, entries []VectorEntry) error

	// Search finds the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}
