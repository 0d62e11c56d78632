package services

import (
	"context"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

// retryCall invokes fn up to attempts times, doubling the delay between
// attempts. Only transient errors are retried; fatal errors and context
// cancellation return immediately. The last error is returned when all
// attempts are exhausted.
func retryCall[T any](ctx context.Context, provider string, attempts int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	delay := baseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !domain.IsTransient(err) || attempt == attempts {
			break
		}

		logger.Warn("%s call failed (attempt %d/%d), retrying in %s: %v",
			provider, attempt, attempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay *= 2
	}
	return zero, lastErr
}
