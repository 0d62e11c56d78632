package driven

import (
	"context"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// RunStore durably persists run records. The orchestrator writes at
// phase boundaries only; a crash between boundaries loses at most one
// phase's work and never corrupts committed state. Query, message,
// chunk, term and thread records are append-only per run.
type RunStore interface {
	// SaveRun inserts or updates the run record.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// ListRuns returns all stored runs, newest first.
	ListRuns(ctx context.Context) ([]domain.Run, error)

	// AppendQueries records executed queries for a run.
	AppendQueries(ctx context.Context, runID string, queries []domain.Query) error

	// AppendMessages records fetched messages for a run.
	AppendMessages(ctx context.Context, runID string, messages []domain.Message) error

	// AppendChunks records chunks for a run.
	AppendChunks(ctx context.Context, runID string, chunks []domain.Chunk) error

	// AppendTermExpansion records one iteration's term changes.
	AppendTermExpansion(ctx context.Context, runID string, exp domain.TermExpansion) error

	// SaveThreads stores the summarised threads with their bullets.
	SaveThreads(ctx context.Context, runID string, threads []domain.Thread) error

	// GetThreads retrieves the stored threads for a run.
	GetThreads(ctx context.Context, runID string) ([]domain.Thread, error)

	// Close releases resources.
	Close() error
}

// MessageCache is the global, read-mostly message dedup cache shared
// across runs. The contract is deliberately narrow: insert-if-absent
// and lookups only. Run-scoped state (selection) never enters the cache.
type MessageCache interface {
	// Insert stores msg if no message with its SourceID exists.
	// It returns the message now in the cache and whether msg was inserted.
	Insert(ctx context.Context, msg domain.Message) (cached *domain.Message, inserted bool, err error)

	// Get retrieves a cached message by source identifier.
	Get(ctx context.Context, sourceID string) (*domain.Message, error)
}
