package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

func TestBus_SequencesPerRun(t *testing.T) {
	b := NewBus()

	first := b.Emit("run-a", domain.EventQueryExecuted, nil)
	second := b.Emit("run-a", domain.EventQueryExecuted, nil)
	other := b.Emit("run-b", domain.EventQueryExecuted, nil)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(1), other.Seq, "sequences are per run")
}

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus()
	ch, release := b.Subscribe("run-a")
	defer release()

	b.Emit("run-a", domain.EventQueryExecuted, "one")
	b.Emit("run-a", domain.EventIterationComplete, "two")

	ev := <-ch
	assert.Equal(t, domain.EventQueryExecuted, ev.Type)
	assert.Equal(t, "one", ev.Payload)
	ev = <-ch
	assert.Equal(t, domain.EventIterationComplete, ev.Type)
	assert.Equal(t, uint64(2), ev.Seq)
}

func TestBus_TerminalEventClosesStream(t *testing.T) {
	b := NewBus()
	ch, release := b.Subscribe("run-a")
	defer release()

	b.Emit("run-a", domain.EventRunComplete, nil)
	assert.True(t, b.Closed("run-a"))

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, domain.EventRunComplete, ev.Type)
	_, ok = <-ch
	assert.False(t, ok, "channel closes after the terminal event")

	// Nothing is delivered after a terminal event.
	post := b.Emit("run-a", domain.EventQueryExecuted, nil)
	assert.Zero(t, post.Seq)
}

func TestBus_SubscribeAfterTerminal(t *testing.T) {
	b := NewBus()
	b.Emit("run-a", domain.EventRunFailed, nil)

	ch, release := b.Subscribe("run-a")
	defer release()
	_, ok := <-ch
	assert.False(t, ok, "late subscribers get a closed channel")
}

func TestBus_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	ch, release := b.Subscribe("run-a")
	defer release()

	for i := 0; i < DefaultBuffer+10; i++ {
		b.Emit("run-a", domain.EventQueryExecuted, i)
	}

	// The buffer holds the first events; the rest were dropped and the
	// emitter never stalled.
	assert.Len(t, ch, DefaultBuffer)
	ev := <-ch
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestBus_ReleaseStopsDelivery(t *testing.T) {
	b := NewBus()
	ch, release := b.Subscribe("run-a")
	release()

	b.Emit("run-a", domain.EventQueryExecuted, nil)
	_, ok := <-ch
	assert.False(t, ok)
}
