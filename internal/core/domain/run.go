package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle phase of a run.
type RunStatus string

// Run lifecycle phases. The happy path is linear with a single loop-back
// from ITERATING to FETCHING; FAILED is reachable from anywhere and
// CANCELLED from any non-terminal phase.
const (
	StatusQueued      RunStatus = "queued"
	StatusFetching    RunStatus = "fetching"
	StatusNormalising RunStatus = "normalising"
	StatusRanking     RunStatus = "ranking"
	StatusIterating   RunStatus = "iterating"
	StatusSummarising RunStatus = "summarising"
	StatusExporting   RunStatus = "exporting"
	StatusDone        RunStatus = "done"
	StatusFailed      RunStatus = "failed"
	StatusCancelled   RunStatus = "cancelled"
)

// validTransitions maps each phase to the phases it may advance to.
// FAILED and CANCELLED are handled in CanTransitionTo.
var validTransitions = map[RunStatus][]RunStatus{
	StatusQueued:      {StatusFetching},
	StatusFetching:    {StatusNormalising},
	StatusNormalising: {StatusRanking},
	StatusRanking:     {StatusIterating},
	StatusIterating:   {StatusFetching, StatusSummarising},
	StatusSummarising: {StatusExporting},
	StatusExporting:   {StatusDone},
}

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal
// state-machine transition.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if next == StatusCancelled {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RankWeights holds the fusion weights for the three ranking components.
type RankWeights struct {
	Lexical float64
	Vector  float64
	Rerank  float64
}

// Normalised returns weights scaled to sum to 1. When the reranker is
// disabled its weight is redistributed proportionally across the other two,
// so callers never branch on reranker availability.
func (w RankWeights) Normalised(rerankEnabled bool) RankWeights {
	lex, vec, rr := w.Lexical, w.Vector, w.Rerank
	if !rerankEnabled {
		rr = 0
	}
	total := lex + vec + rr
	if total <= 0 {
		// Degenerate configuration; fall back to lexical only.
		return RankWeights{Lexical: 1}
	}
	return RankWeights{Lexical: lex / total, Vector: vec / total, Rerank: rr / total}
}

// RunConfig holds all tunable parameters for a single run.
type RunConfig struct {
	// Question is the natural-language question to answer.
	Question string

	// After and Before bound message dates. Zero means unbounded.
	After  time.Time
	Before time.Time

	// Domains restricts senders to the given domains when non-empty.
	Domains []string

	// MaxIterations caps the fetch/rank/expand loop.
	MaxIterations int

	// EnableRerank toggles the optional reranker stage.
	EnableRerank bool

	// ChunkSize is the target chunk length in tokens.
	ChunkSize int

	// ChunkOverlap is the token overlap between adjacent chunks.
	ChunkOverlap int

	// LexicalTopK is the lexical prefilter survivor count.
	LexicalTopK int

	// VectorTopK is the vector-similarity survivor count.
	VectorTopK int

	// SelectionTopN is how many top-ranked chunks are selected per
	// iteration and fed to term expansion.
	SelectionTopN int

	// MaxNewTerms caps the terms added by one expansion round.
	MaxNewTerms int

	// MinNoveltyGain and MinPrecision are the stopping thresholds; each
	// must fail for two consecutive iterations to stop the run.
	MinNoveltyGain float64
	MinPrecision   float64

	// RelevanceThreshold is the fused-score cutoff for the precision proxy.
	RelevanceThreshold float64

	// Weights are the score-fusion weights.
	Weights RankWeights

	// MinQuoteTokens is the minimum token length for a citable span.
	MinQuoteTokens int

	// MaxRetries is the per-provider-call retry ceiling.
	MaxRetries int

	// RetryBaseDelay is the initial backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration

	// FetchConcurrency bounds concurrent body fetches.
	FetchConcurrency int

	// EmbedConcurrency bounds concurrent embedding batches.
	EmbedConcurrency int

	// WallClockBudget is the soft run duration budget. Exceeding it
	// advances the run to summarisation rather than failing it. Zero
	// means unlimited.
	WallClockBudget time.Duration

	// ProgressFloor is the minimum progress fraction before an ETA is
	// reported on iteration events.
	ProgressFloor float64
}

// DefaultRunConfig returns a config with documented defaults for the
// given question.
func DefaultRunConfig(question string) RunConfig {
	return RunConfig{
		Question:           question,
		MaxIterations:      4,
		EnableRerank:       true,
		ChunkSize:          800,
		ChunkOverlap:       120,
		LexicalTopK:        100,
		VectorTopK:         50,
		SelectionTopN:      30,
		MaxNewTerms:        8,
		MinNoveltyGain:     0.02,
		MinPrecision:       0.30,
		RelevanceThreshold: 0.5,
		Weights:            RankWeights{Lexical: 0.3, Vector: 0.4, Rerank: 0.3},
		MinQuoteTokens:     10,
		MaxRetries:         3,
		RetryBaseDelay:     200 * time.Millisecond,
		FetchConcurrency:   4,
		EmbedConcurrency:   4,
		ProgressFloor:      0.05,
	}
}

// Validate checks the configuration before a run enters FETCHING.
// Violations are reported as ErrInvalidConfig.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Question) == "" {
		return fmt.Errorf("%w: question is empty", ErrInvalidConfig)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be >= 1", ErrInvalidConfig)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be >= 1", ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", ErrInvalidConfig)
	}
	if !c.After.IsZero() && !c.Before.IsZero() && c.Before.Before(c.After) {
		return fmt.Errorf("%w: before-date precedes after-date", ErrInvalidConfig)
	}
	if c.LexicalTopK < 1 || c.VectorTopK < 1 || c.SelectionTopN < 1 {
		return fmt.Errorf("%w: ranking cutoffs must be >= 1", ErrInvalidConfig)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: retry ceiling must be >= 1", ErrInvalidConfig)
	}
	w := c.Weights
	if w.Lexical < 0 || w.Vector < 0 || w.Rerank < 0 || w.Lexical+w.Vector+w.Rerank <= 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative and sum > 0", ErrInvalidConfig)
	}
	return nil
}

// IterationMetrics captures the outcome of one fetch/rank/expand cycle.
type IterationMetrics struct {
	Iteration      int
	QueriesTried   int
	NewMessages    int
	NewThreads     int
	TotalChunks    int
	NoveltyGain    float64
	PrecisionProxy float64
	Duration       time.Duration
	StopReason     string
}

// RunMetrics aggregates metrics across a whole run.
type RunMetrics struct {
	Iterations    int
	TotalMessages int
	TotalThreads  int
	TotalChunks   int
	TotalBullets  int
	Duration      time.Duration
	History       []IterationMetrics
}

// Run is one end-to-end question-answering session. It is owned
// exclusively by its orchestrator and persisted at phase boundaries.
type Run struct {
	ID        string
	Config    RunConfig
	Status    RunStatus
	Metrics   RunMetrics
	Failure   *FailureReason
	CreatedAt time.Time
	UpdatedAt time.Time
}
