package domain

import "time"

// EventType identifies a progress notification kind. The string values
// are a wire contract with downstream transports and must not change.
type EventType string

const (
	EventPhaseChanged      EventType = "phase_changed"
	EventQueryExecuted     EventType = "query_executed"
	EventTermExpanded      EventType = "term_expanded"
	EventIterationComplete EventType = "iteration_complete"
	EventRunComplete       EventType = "run_complete"
	EventRunFailed         EventType = "run_failed"
	// EventRunCancelled uses the single-l spelling on the wire.
	EventRunCancelled EventType = "run_canceled"
)

// Event is an immutable, ordered progress notification. Seq increases
// monotonically within a run; cross-run ordering is unspecified.
type Event struct {
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventRunComplete, EventRunFailed, EventRunCancelled:
		return true
	}
	return false
}

// PhasePayload accompanies phase_changed events.
type PhasePayload struct {
	From RunStatus `json:"from"`
	To   RunStatus `json:"to"`
}

// QueryPayload accompanies query_executed events.
type QueryPayload struct {
	Iteration   int    `json:"iteration"`
	Operator    string `json:"operator"`
	Rationale   string `json:"rationale"`
	Hits        int    `json:"hits"`
	NewMessages int    `json:"new_messages"`
}

// TermPayload accompanies term_expanded events.
type TermPayload struct {
	Iteration int      `json:"iteration"`
	Added     []string `json:"added"`
	Decayed   []string `json:"decayed,omitempty"`
}

// IterationPayload accompanies iteration_complete events. ETA is nil
// until the progress fraction clears the configured floor, to avoid
// wildly unstable early estimates.
type IterationPayload struct {
	Iteration      int            `json:"iteration"`
	NoveltyGain    float64        `json:"novelty_gain"`
	PrecisionProxy float64        `json:"precision_proxy"`
	MessagesFound  int            `json:"messages_found"`
	ThreadsFound   int            `json:"threads_found"`
	Elapsed        time.Duration  `json:"elapsed_ms"`
	ETA            *time.Duration `json:"eta_ms,omitempty"`
}

// FailurePayload accompanies run_failed events.
type FailurePayload struct {
	Reason FailureReason `json:"reason"`
}

// EstimateETA computes elapsed/max(progress, epsilon) - elapsed, or nil
// while progress is below floor.
func EstimateETA(elapsed time.Duration, progress, floor float64) *time.Duration {
	const epsilon = 1e-9
	if progress <= floor {
		return nil
	}
	if progress < epsilon {
		progress = epsilon
	}
	eta := time.Duration(float64(elapsed)/progress) - elapsed
	if eta < 0 {
		eta = 0
	}
	return &eta
}
