// Package bm25 provides an in-memory inverted-index implementation of
// the lexical SearchEngine port. One engine instance scores the chunk
// corpus of exactly one run and is owned by that run's orchestrator.
package bm25

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// Okapi BM25 parameters.
const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)

// Tokenise lowercases text and extracts word tokens. Shared by the
// engine and its tests so scores stay comparable.
func Tokenise(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type document struct {
	length int
	freq   map[string]int
}

// Engine is an in-memory BM25 scorer over indexed chunks.
type Engine struct {
	mu        sync.RWMutex
	k1, b     float64
	docs      map[string]*document
	docFreq   map[string]int
	totalLen  int
	docsOrder []string
}

// Option configures the engine.
type Option func(*Engine)

// WithParameters overrides the BM25 k1/b parameters.
func WithParameters(k1, b float64) Option {
	return func(e *Engine) {
		if k1 > 0 {
			e.k1 = k1
		}
		if b >= 0 && b <= 1 {
			e.b = b
		}
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		k1:      defaultK1,
		b:       defaultB,
		docs:    make(map[string]*document),
		docFreq: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index adds or updates a chunk in the index.
func (e *Engine) Index(_ context.Context, chunk domain.Chunk) error {
	tokens := Tokenise(chunk.Text)

	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.docs[chunk.ID]; ok {
		e.totalLen -= old.length
		for term := range old.freq {
			e.docFreq[term]--
			if e.docFreq[term] <= 0 {
				delete(e.docFreq, term)
			}
		}
	} else {
		e.docsOrder = append(e.docsOrder, chunk.ID)
	}

	doc := &document{length: len(tokens), freq: make(map[string]int, len(tokens))}
	for _, tok := range tokens {
		doc.freq[tok]++
	}
	for term := range doc.freq {
		e.docFreq[term]++
	}
	e.docs[chunk.ID] = doc
	e.totalLen += doc.length
	return nil
}

// Search scores every indexed chunk against the query and returns the
// top matches. Ties break by chunk ID for determinism.
func (e *Engine) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	terms := Tokenise(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	n := len(e.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(e.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	// Dedup query terms; repeated terms don't score twice.
	seen := make(map[string]struct{}, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		uniq = append(uniq, term)
	}

	hits := make([]driven.SearchHit, 0, n)

	for _, id := range e.docsOrder {
		doc := e.docs[id]
		score := 0.0
		for _, term := range uniq {
			tf := doc.freq[term]
			if tf == 0 {
				continue
			}
			df := e.docFreq[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := float64(tf) * (e.k1 + 1) /
				(float64(tf) + e.k1*(1-e.b+e.b*float64(doc.length)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, driven.SearchHit{ChunkID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = make(map[string]*document)
	e.docFreq = make(map[string]int)
	e.docsOrder = nil
	e.totalLen = 0
	return nil
}
