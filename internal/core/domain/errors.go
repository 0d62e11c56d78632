package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates invalid run parameters, caught before
	// a run enters FETCHING.
	ErrInvalidConfig = errors.New("invalid run configuration")

	// ErrProviderTransient indicates a retryable provider failure
	// (timeout, rate limit).
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderFatal indicates a non-retryable provider failure
	// (auth failure, malformed response).
	ErrProviderFatal = errors.New("fatal provider error")

	// ErrInvariantViolation indicates a programming error such as a
	// bullet citing an unselected message. Checked defensively and
	// reported, never silently dropped.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRunActive indicates the run is already executing.
	ErrRunActive = errors.New("run already active")

	// ErrRunTerminal indicates the run has already reached a terminal state.
	ErrRunTerminal = errors.New("run already terminal")
)

// ProviderError attributes a failure to a named provider during a phase.
type ProviderError struct {
	// Provider names the failing port, e.g. "message source".
	Provider string

	// Phase is the run phase during which the failure occurred.
	Phase RunStatus

	// Err is the underlying cause, wrapping ErrProviderTransient or
	// ErrProviderFatal.
	Err error
}

func (e *ProviderError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s provider failed during %s: %v", e.Provider, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s provider failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TransientError wraps err as a retryable provider failure.
func TransientError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: fmt.Errorf("%w: %w", ErrProviderTransient, err)}
}

// FatalError wraps err as a non-retryable provider failure.
func FatalError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: fmt.Errorf("%w: %w", ErrProviderFatal, err)}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient)
}

// FailureReason is the structured, non-generic reason recorded on a
// failed run: which phase, which provider, which error class.
type FailureReason struct {
	Phase     RunStatus
	Provider  string
	Class     string
	Iteration int
	Message   string
}

// Failure error classes.
const (
	ClassTransient = "transient"
	ClassFatal     = "fatal"
	ClassConfig    = "configuration"
	ClassInvariant = "invariant"
)

func (r FailureReason) String() string {
	return fmt.Sprintf("%s failure in %s provider during %s (iteration %d): %s",
		r.Class, r.Provider, r.Phase, r.Iteration, r.Message)
}
