package driving

import (
	"context"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// RunService manages run lifecycles. Each run executes as an independent
// unit of work; multiple runs may be in flight concurrently.
type RunService interface {
	// CreateRun validates the configuration and records a new queued run.
	CreateRun(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error)

	// Execute drives the run through its phase state machine. It blocks
	// until the run reaches a terminal state.
	Execute(ctx context.Context, runID string) error

	// Cancel requests cancellation. The request is observed at the next
	// phase boundary; in-flight provider calls are abandoned.
	Cancel(ctx context.Context, runID string) error

	// Get returns the current run record.
	Get(ctx context.Context, runID string) (*domain.Run, error)

	// Subscribe returns an ordered event channel for the run and a
	// release function. Events arrive in production order.
	Subscribe(runID string) (<-chan domain.Event, func())
}
