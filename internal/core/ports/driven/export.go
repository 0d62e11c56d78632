package driven

import (
	"context"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// RunResult is the final artifact handed to the export port.
type RunResult struct {
	Run     domain.Run
	Threads []domain.Thread
}

// Exporter receives the final run result for rendering into external
// formats. Rendering specifics are outside the core.
type Exporter interface {
	Export(ctx context.Context, result RunResult) error
}
