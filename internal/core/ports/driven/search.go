package driven

import (
	"context"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// SearchEngine provides lexical (BM25-family) scoring over the chunk
// corpus of one run. Each run owns its own instance exclusively.
type SearchEngine interface {
	// Index adds or updates a chunk in the search index.
	Index(ctx context.Context, chunk domain.Chunk) error

	// Search scores indexed chunks against the query text and returns
	// the top matches.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}

// SearchHit represents a search result from the engine.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (e.g., BM25).
	Score float64
}
