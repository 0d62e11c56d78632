// Package local provides deterministic, dependency-free implementations
// of the AI provider ports. They make runs reproducible offline and
// back the test fixtures; remote model adapters can be injected in
// their place without touching the core.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// DefaultDimensions is the embedding size used when none is configured.
const DefaultDimensions = 256

// Embedder produces deterministic bag-of-words hash embeddings.
// Identical text always yields an identical vector, and texts sharing
// vocabulary land near each other, which is enough signal for the
// vector stage to rank fixture corpora sensibly.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates an embedder with the given dimension count.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed generates a vector embedding for the given text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if len(token) < 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		bucket := int(h.Sum32()) % e.dimensions
		if bucket < 0 {
			bucket += e.dimensions
		}
		// Sign hash decorrelates buckets, per the hashing trick.
		if h.Sum32()&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var sum float64
	for _, f := range vec {
		sum += float64(f) * float64(f)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// ModelName returns the name of the embedding model being used.
func (e *Embedder) ModelName() string { return "local-hash-v1" }

// Close releases resources.
func (e *Embedder) Close() error { return nil }
