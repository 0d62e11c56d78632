package domain

import "time"

// Chunk is a token-bounded slice of a normalised message body and the
// unit of ranking. The three component scores are independently nil
// until the corresponding stage has scored the chunk.
type Chunk struct {
	// ID is deterministic: "<message id>_<position>".
	ID string

	// MessageID is the owning message.
	MessageID string

	// Position is the ordinal position within the message body.
	Position int

	// Text is the chunk content.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// Lexical, Vector and Rerank are the raw component scores.
	Lexical *float64
	Vector  *float64
	Rerank  *float64

	// Fused is the weighted combination of the normalised components.
	Fused float64
}

// Query is one search-operator string issued in one iteration.
// Immutable once recorded; append-only per run.
type Query struct {
	Iteration   int
	Operator    string
	Rationale   string
	Hits        int
	NewMessages int
	NewThreads  int
	Duration    time.Duration
}

// Query rationale tags.
const (
	RationaleSeed     = "seed"
	RationaleExpanded = "expanded"
)

// TermExpansion records one iteration's vocabulary changes. Decayed terms
// stay in the record for the audit trail; they are only excluded from
// further query generation.
type TermExpansion struct {
	Iteration int

	// Added are the terms introduced this iteration.
	Added []string

	// Evidence is the co-occurring vocabulary that justified the additions.
	Evidence []string

	// Decayed are terms retired after failing to produce new hits.
	Decayed []string
}
