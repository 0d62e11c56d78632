// Package events implements the per-run outbound event channel. The
// orchestrator produces events as values; this bus assigns monotonic
// sequence numbers and delivers them to any number of subscribers in
// production order. Cross-run ordering is unspecified.
package events

import (
	"sync"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// DefaultBuffer is the per-subscriber channel buffer.
const DefaultBuffer = 256

// Bus fans events out to per-run subscriber channels.
type Bus struct {
	mu   sync.Mutex
	runs map[string]*stream
}

type stream struct {
	seq    uint64
	closed bool
	subs   []chan domain.Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{runs: make(map[string]*stream)}
}

// Subscribe returns an ordered event channel for the run and a release
// function. Subscribing to a closed stream returns a closed channel.
func (b *Bus) Subscribe(runID string) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.runs[runID]
	if st == nil {
		st = &stream{}
		b.runs[runID] = st
	}

	ch := make(chan domain.Event, DefaultBuffer)
	if st.closed {
		close(ch)
		return ch, func() {}
	}
	st.subs = append(st.subs, ch)

	release := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range st.subs {
			if sub == ch {
				st.subs = append(st.subs[:i], st.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, release
}

// Emit assigns the next sequence number and delivers the event to all
// subscribers. Terminal events close the stream; nothing is delivered
// after a terminal event. Returns the emitted event.
func (b *Bus) Emit(runID string, typ domain.EventType, payload any) domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.runs[runID]
	if st == nil {
		st = &stream{}
		b.runs[runID] = st
	}
	if st.closed {
		return domain.Event{}
	}

	st.seq++
	ev := domain.Event{
		RunID:     runID,
		Seq:       st.seq,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	for _, sub := range st.subs {
		// Delivery preserves order; a full subscriber drops the event
		// rather than stalling the orchestrator.
		select {
		case sub <- ev:
		default:
		}
	}

	if ev.IsTerminal() {
		st.closed = true
		for _, sub := range st.subs {
			close(sub)
		}
		st.subs = nil
	}

	return ev
}

// Closed reports whether the run's stream has emitted a terminal event.
func (b *Bus) Closed(runID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.runs[runID]
	return st != nil && st.closed
}
