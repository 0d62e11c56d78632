package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

func TestRetryCall_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	out, err := retryCall(context.Background(), "test provider", 3, time.Millisecond,
		func(context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", domain.TransientError("test provider", errors.New("timeout"))
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}

func TestRetryCall_ExhaustsRetries(t *testing.T) {
	attempts := 0
	_, err := retryCall(context.Background(), "test provider", 3, time.Millisecond,
		func(context.Context) (int, error) {
			attempts++
			return 0, domain.TransientError("test provider", errors.New("timeout"))
		})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, domain.IsTransient(err))
}

func TestRetryCall_FatalErrorNotRetried(t *testing.T) {
	attempts := 0
	_, err := retryCall(context.Background(), "test provider", 3, time.Millisecond,
		func(context.Context) (int, error) {
			attempts++
			return 0, domain.FatalError("test provider", errors.New("bad credentials"))
		})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, domain.ErrProviderFatal)
}

func TestRetryCall_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retryCall(ctx, "test provider", 3, time.Minute,
		func(context.Context) (int, error) {
			return 0, domain.TransientError("test provider", errors.New("timeout"))
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
