package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/ai/local"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/grammar/gmail"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/index/bm25"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/index/vector"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/source/fixture"
	"github.com/custodia-labs/mailsleuth/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/events"
)

type nopExporter struct {
	results []driven.RunResult
}

func (e *nopExporter) Export(_ context.Context, result driven.RunResult) error {
	e.results = append(e.results, result)
	return nil
}

func newTestService(t *testing.T, opts ...fixture.Option) (*Service, *memory.RunStore, *nopExporter) {
	t.Helper()
	store := memory.NewRunStore()
	exporter := &nopExporter{}
	embedder := local.NewEmbedder(64)
	providers := Providers{
		Source:     fixture.New(opts...),
		Embedder:   embedder,
		Reranker:   local.NewReranker(),
		Summariser: local.NewSummariser(),
		Exporter:   exporter,
		Grammar:    gmail.New(),
		Store:      store,
		Cache:      memory.NewMessageCache(),
		NewSearchEngine: func() driven.SearchEngine {
			return bm25.New()
		},
		NewVectorIndex: func(dimensions int) (driven.VectorIndex, error) {
			return vector.New(dimensions)
		},
	}
	return NewService(providers, events.NewBus()), store, exporter
}

func testConfig(question string) domain.RunConfig {
	cfg := domain.DefaultRunConfig(question)
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func drainEvents(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestService_FullInvestigationRun(t *testing.T) {
	svc, store, exporter := newTestService(t)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("What happened with the CoolSculpting Elite return request?"))
	require.NoError(t, err)

	require.NoError(t, svc.Execute(ctx, run.ID))

	final, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, final.Status)
	assert.Nil(t, final.Failure)
	assert.GreaterOrEqual(t, final.Metrics.Iterations, 1)
	assert.Greater(t, final.Metrics.TotalMessages, 0)
	assert.Greater(t, final.Metrics.TotalChunks, 0)

	threads, err := store.GetThreads(ctx, run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, threads)

	threadIDs := make(map[string]bool)
	for _, thread := range threads {
		threadIDs[thread.ID] = true
		assert.NotEmpty(t, thread.Summary)
		assert.Greater(t, thread.Confidence, 0.0)
		for _, bullet := range thread.Bullets {
			assert.Equal(t, thread.ID, bullet.ThreadID)
			messageID, threadID, _, err := domain.ParseCitation(bullet.Citation())
			require.NoError(t, err)
			assert.Equal(t, bullet.MessageID, messageID)
			assert.Equal(t, bullet.ThreadID, threadID)
		}
	}
	assert.True(t, threadIDs["T-001"], "the originating return-request thread must surface")

	require.Len(t, exporter.results, 1)
	assert.Equal(t, domain.StatusDone, exporter.results[0].Run.Status)

	// Queries are recorded append-only with their iteration tags.
	queries := store.Queries(run.ID)
	require.NotEmpty(t, queries)
	assert.Equal(t, 1, queries[0].Iteration)
	assert.Equal(t, domain.RationaleSeed, queries[0].Rationale)
}

func TestService_EventsAreOrderedAndTerminated(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("Was the packaging size exception approved?"))
	require.NoError(t, err)

	eventsCh, release := svc.Subscribe(run.ID)
	defer release()

	require.NoError(t, svc.Execute(ctx, run.ID))
	got := drainEvents(eventsCh)
	require.NotEmpty(t, got)

	var lastSeq uint64
	for _, ev := range got {
		assert.Greater(t, ev.Seq, lastSeq, "sequence numbers must increase")
		lastSeq = ev.Seq
		assert.Equal(t, run.ID, ev.RunID)
	}

	first := got[0]
	require.Equal(t, domain.EventPhaseChanged, first.Type)
	payload, ok := first.Payload.(domain.PhasePayload)
	require.True(t, ok)
	assert.Equal(t, domain.StatusQueued, payload.From)
	assert.Equal(t, domain.StatusFetching, payload.To)

	last := got[len(got)-1]
	assert.True(t, last.IsTerminal())
	assert.Equal(t, domain.EventRunComplete, last.Type)
	for _, ev := range got[:len(got)-1] {
		assert.False(t, ev.IsTerminal(), "only the final event may be terminal")
	}
}

func TestService_TransientSearchFailuresAreRetried(t *testing.T) {
	svc, _, _ := newTestService(t, fixture.WithSearchFailures(2))
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("Why was the machine returned?"))
	require.NoError(t, err)
	require.NoError(t, svc.Execute(ctx, run.ID))

	final, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, final.Status)
}

func TestService_ExhaustedRetriesFailTheRun(t *testing.T) {
	svc, _, _ := newTestService(t, fixture.WithSearchFailures(100))
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("Why was the machine returned?"))
	require.NoError(t, err)

	eventsCh, release := svc.Subscribe(run.ID)
	defer release()

	require.Error(t, svc.Execute(ctx, run.ID))

	final, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, final.Status)
	require.NotNil(t, final.Failure)
	assert.Equal(t, "message source", final.Failure.Provider)
	assert.Equal(t, domain.ClassTransient, final.Failure.Class)
	assert.Equal(t, domain.StatusFetching, final.Failure.Phase)
	assert.Equal(t, 1, final.Failure.Iteration)

	got := drainEvents(eventsCh)
	require.NotEmpty(t, got)
	assert.Equal(t, domain.EventRunFailed, got[len(got)-1].Type)
}

func TestService_CancelQueuedRun(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("Anything at all?"))
	require.NoError(t, err)

	eventsCh, release := svc.Subscribe(run.ID)
	defer release()

	require.NoError(t, svc.Cancel(ctx, run.ID))

	final, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, final.Status)

	got := drainEvents(eventsCh)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventRunCancelled, got[0].Type)

	// A terminal run cannot execute or cancel again.
	assert.ErrorIs(t, svc.Execute(ctx, run.ID), domain.ErrRunTerminal)
	assert.ErrorIs(t, svc.Cancel(ctx, run.ID), domain.ErrRunTerminal)
}

func TestService_CreateRunValidatesConfig(t *testing.T) {
	svc, _, _ := newTestService(t)

	cfg := testConfig("  ")
	_, err := svc.CreateRun(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestService_MessageCacheDeduplicatesAcrossRuns(t *testing.T) {
	store := memory.NewRunStore()
	cache := memory.NewMessageCache()
	providers := Providers{
		Source:     fixture.New(),
		Embedder:   local.NewEmbedder(64),
		Summariser: local.NewSummariser(),
		Exporter:   &nopExporter{},
		Grammar:    gmail.New(),
		Store:      store,
		Cache:      cache,
		NewSearchEngine: func() driven.SearchEngine {
			return bm25.New()
		},
		NewVectorIndex: func(dimensions int) (driven.VectorIndex, error) {
			return vector.New(dimensions)
		},
	}
	svc := NewService(providers, events.NewBus())
	ctx := context.Background()

	first, err := svc.CreateRun(ctx, testConfig("What happened with the return?"))
	require.NoError(t, err)
	require.NoError(t, svc.Execute(ctx, first.ID))
	cachedAfterFirst := cache.Len()
	require.Greater(t, cachedAfterFirst, 0)

	second, err := svc.CreateRun(ctx, testConfig("What happened with the return?"))
	require.NoError(t, err)
	require.NoError(t, svc.Execute(ctx, second.ID))
	assert.Equal(t, cachedAfterFirst, cache.Len(), "the second run must reuse cached messages")
}

// Unused subscription channels must not stall a run.
func TestService_SlowSubscriberDoesNotBlock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, testConfig("Was a credit memo issued?"))
	require.NoError(t, err)

	_, release := svc.Subscribe(run.ID)
	defer release()

	done := make(chan error, 1)
	go func() { done <- svc.Execute(ctx, run.ID) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not finish with an undrained subscriber")
	}
}
