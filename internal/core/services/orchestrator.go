package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/events"
	"github.com/custodia-labs/mailsleuth/internal/logger"
	"github.com/custodia-labs/mailsleuth/internal/normalisers/email"
	"github.com/custodia-labs/mailsleuth/internal/postprocessors/chunker"
)

// fetchBatchSize is the number of message bodies requested per source call.
const fetchBatchSize = 10

// embedBatchSize is the number of chunk texts embedded per provider call.
const embedBatchSize = 16

// Message source rate limits, shared by search and body fetch calls.
const (
	sourceRate  = rate.Limit(10)
	sourceBurst = 5
)

// orchestrator drives one run through its phase state machine. It owns
// the run record, the run-scoped indexes and all intermediate state
// exclusively; nothing here is shared between runs except the message
// cache and the stores, which synchronise internally.
type orchestrator struct {
	run   *domain.Run
	bus   *events.Bus
	store driven.RunStore
	cache driven.MessageCache

	source     driven.MessageSource
	embedder   driven.EmbeddingService
	summariser driven.Summariser
	exporter   driven.Exporter

	search driven.SearchEngine
	vector driven.VectorIndex

	normaliser *email.Normaliser
	chunks     *chunker.Processor

	planner   *Planner
	expander  *Expander
	ranker    *Ranker
	stopper   *StopEvaluator
	citations *CitationBuilder
	limiter   *rate.Limiter
	pool      *ants.Pool

	cancelled chan struct{}
	cancel    sync.Once
	started   time.Time

	// Run-scoped retrieval state.
	messages     map[string]*domain.Message
	chunkSet     map[string]domain.Chunk
	prevSelected map[string]struct{}

	iteration    int
	pendingTerms []string
	newFetched   []string
	iterQueries  int
	iterMessages int
	iterThreads  int
	selection    []domain.Chunk
	novelty      float64
	precision    float64
	threads      []domain.Thread
}

func newOrchestrator(run *domain.Run, p Providers, bus *events.Bus) (*orchestrator, error) {
	search := p.NewSearchEngine()
	vector, err := p.NewVectorIndex(p.Embedder.Dimensions())
	if err != nil {
		search.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	concurrency := run.Config.EmbedConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		search.Close()
		vector.Close()
		return nil, fmt.Errorf("creating embed pool: %w", err)
	}

	cfg := run.Config
	return &orchestrator{
		run:        run,
		bus:        bus,
		store:      p.Store,
		cache:      p.Cache,
		source:     p.Source,
		embedder:   p.Embedder,
		summariser: p.Summariser,
		exporter:   p.Exporter,
		search:     search,
		vector:     vector,
		normaliser: email.New(),
		chunks: chunker.New(
			chunker.WithChunkSize(cfg.ChunkSize),
			chunker.WithOverlap(cfg.ChunkOverlap),
		),
		planner:      NewPlanner(p.Grammar, cfg),
		expander:     NewExpander(cfg),
		ranker:       NewRanker(search, vector, p.Embedder, p.Reranker, cfg),
		stopper:      NewStopEvaluator(cfg),
		citations:    NewCitationBuilder(cfg.MinQuoteTokens),
		limiter:      rate.NewLimiter(sourceRate, sourceBurst),
		pool:         pool,
		cancelled:    make(chan struct{}),
		messages:     make(map[string]*domain.Message),
		chunkSet:     make(map[string]domain.Chunk),
		prevSelected: make(map[string]struct{}),
	}, nil
}

// requestCancel flags the run for cancellation. The flag is observed at
// the next phase boundary; in-flight provider calls are not interrupted.
func (o *orchestrator) requestCancel() {
	o.cancel.Do(func() { close(o.cancelled) })
}

func (o *orchestrator) isCancelled(ctx context.Context) bool {
	select {
	case <-o.cancelled:
		return true
	default:
	}
	return ctx.Err() != nil
}

// execute drives the phase state machine to a terminal state. The
// returned error is non-nil only when the run failed.
func (o *orchestrator) execute(ctx context.Context) error {
	defer o.cleanup()
	o.started = time.Now()

	for {
		if o.isCancelled(ctx) {
			o.markCancelled(ctx)
			return nil
		}

		var err error
		switch o.run.Status {
		case domain.StatusQueued:
			o.iteration = 1
			err = o.advance(ctx, domain.StatusFetching)
		case domain.StatusFetching:
			if err = o.fetch(ctx); err == nil {
				err = o.advance(ctx, domain.StatusNormalising)
			}
		case domain.StatusNormalising:
			if err = o.normalise(ctx); err == nil {
				err = o.advance(ctx, domain.StatusRanking)
			}
		case domain.StatusRanking:
			if err = o.rank(ctx); err == nil {
				err = o.advance(ctx, domain.StatusIterating)
			}
		case domain.StatusIterating:
			err = o.iterate(ctx)
		case domain.StatusSummarising:
			if err = o.summarise(ctx); err == nil {
				err = o.advance(ctx, domain.StatusExporting)
			}
		case domain.StatusExporting:
			if err = o.export(ctx); err == nil {
				err = o.advance(ctx, domain.StatusDone)
			}
		case domain.StatusDone:
			o.bus.Emit(o.run.ID, domain.EventRunComplete, o.run.Metrics)
			return nil
		default:
			return nil
		}

		if err != nil {
			o.fail(ctx, err)
			return err
		}
	}
}

// advance performs one state-machine transition, persisting the run and
// emitting a phase event. Illegal transitions are invariant violations.
func (o *orchestrator) advance(ctx context.Context, next domain.RunStatus) error {
	from := o.run.Status
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: illegal transition %s -> %s", domain.ErrInvariantViolation, from, next)
	}
	o.run.Status = next
	o.run.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveRun(ctx, o.run); err != nil {
		return fmt.Errorf("persisting run at %s boundary: %w", next, err)
	}
	o.bus.Emit(o.run.ID, domain.EventPhaseChanged, domain.PhasePayload{From: from, To: next})
	logger.Debug("run %s: %s -> %s", o.run.ID, from, next)
	return nil
}

// fetch plans and executes this iteration's queries, then retrieves
// bodies for messages not yet known to the run. Search and fetch are
// mandatory: exhausting retries fails the run.
func (o *orchestrator) fetch(ctx context.Context) error {
	var queries []domain.Query
	var groups [][]string
	if o.iteration == 1 {
		queries = o.planner.Seed()
	} else {
		queries, groups = o.planner.Expanded(o.iteration, o.pendingTerms, o.expander.Domains())
	}

	o.newFetched = nil
	o.iterQueries = len(queries)
	o.iterMessages = 0
	o.iterThreads = 0

	knownThreads := make(map[string]struct{})
	for _, msg := range o.messages {
		knownThreads[msg.ThreadID] = struct{}{}
	}

	newMeta := make(map[string]driven.MessageMeta)
	var newOrder []string
	cfg := o.run.Config

	for i, q := range queries {
		start := time.Now()
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		metas, err := retryCall(ctx, "message source", cfg.MaxRetries, cfg.RetryBaseDelay,
			func(ctx context.Context) ([]driven.MessageMeta, error) {
				return o.source.Search(ctx, q.Operator)
			})
		if err != nil {
			return err
		}

		q.Hits = len(metas)
		for _, meta := range metas {
			if _, known := o.messages[meta.SourceID]; known {
				continue
			}
			if _, pending := newMeta[meta.SourceID]; pending {
				continue
			}
			newMeta[meta.SourceID] = meta
			newOrder = append(newOrder, meta.SourceID)
			q.NewMessages++
			if _, seen := knownThreads[meta.ThreadID]; !seen {
				knownThreads[meta.ThreadID] = struct{}{}
				q.NewThreads++
			}
		}
		q.Duration = time.Since(start)
		queries[i] = q

		o.bus.Emit(o.run.ID, domain.EventQueryExecuted, domain.QueryPayload{
			Iteration:   q.Iteration,
			Operator:    q.Operator,
			Rationale:   q.Rationale,
			Hits:        q.Hits,
			NewMessages: q.NewMessages,
		})
		logger.Info("query %q: %d hits, %d new", q.Operator, q.Hits, q.NewMessages)

		if q.Rationale == domain.RationaleExpanded && q.NewMessages == 0 && i < len(groups) {
			o.expander.RecordMisses(groups[i])
		}
	}

	if len(queries) > 0 {
		if err := o.store.AppendQueries(ctx, o.run.ID, queries); err != nil {
			return fmt.Errorf("recording queries: %w", err)
		}
	}

	if err := o.retrieveBodies(ctx, newMeta, newOrder); err != nil {
		return err
	}

	o.iterMessages = len(o.newFetched)
	return nil
}

// retrieveBodies resolves new messages through the cache, fetching only
// bodies the cache has never seen. Fetches run in bounded batches.
func (o *orchestrator) retrieveBodies(ctx context.Context, metas map[string]driven.MessageMeta, order []string) error {
	var toFetch []string
	for _, id := range order {
		cached, err := o.cache.Get(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("message cache lookup: %w", err)
		}
		if cached != nil {
			msg := *cached
			msg.Selected = false
			o.messages[id] = &msg
			o.newFetched = append(o.newFetched, id)
			continue
		}
		toFetch = append(toFetch, id)
	}

	if len(toFetch) > 0 {
		cfg := o.run.Config
		fetched := make(map[string]driven.MessageBody)
		var mu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, cfg.FetchConcurrency))
		for start := 0; start < len(toFetch); start += fetchBatchSize {
			batch := toFetch[start:min(start+fetchBatchSize, len(toFetch))]
			g.Go(func() error {
				if err := o.limiter.Wait(gctx); err != nil {
					return err
				}
				bodies, err := retryCall(gctx, "message source", cfg.MaxRetries, cfg.RetryBaseDelay,
					func(ctx context.Context) ([]driven.MessageBody, error) {
						return o.source.FetchBodies(ctx, batch)
					})
				if err != nil {
					return err
				}
				mu.Lock()
				for _, body := range bodies {
					fetched[body.SourceID] = body
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, id := range toFetch {
			body, ok := fetched[id]
			if !ok {
				logger.Warn("source returned no body for %s, skipping", id)
				continue
			}
			meta := metas[id]
			msg := &domain.Message{
				SourceID: meta.SourceID,
				ThreadID: meta.ThreadID,
				Date:     meta.Date,
				From:     meta.From,
				To:       body.To,
				Subject:  meta.Subject,
				Snippet:  meta.Snippet,
				RawBody:  body.Body,
			}
			if _, _, err := o.cache.Insert(ctx, *msg); err != nil {
				return fmt.Errorf("message cache insert: %w", err)
			}
			o.messages[id] = msg
			o.newFetched = append(o.newFetched, id)
		}
	}
	return nil
}

// normalise cleans the bodies fetched this iteration, chunks them,
// indexes the chunks lexically and embeds them into the vector index.
// Embedding failures degrade the vector stage instead of failing the run.
func (o *orchestrator) normalise(ctx context.Context) error {
	var newChunks []domain.Chunk
	var appended []domain.Message
	for _, id := range o.newFetched {
		msg := o.messages[id]
		if msg.Body == "" {
			msg.Body = o.normaliser.Normalise(msg.RawBody)
		}
		for _, chunk := range o.chunks.Chunk(*msg) {
			o.chunkSet[chunk.ID] = chunk
			newChunks = append(newChunks, chunk)
			if err := o.search.Index(ctx, chunk); err != nil {
				return &domain.ProviderError{Provider: "search engine", Phase: o.run.Status, Err: err}
			}
		}
		appended = append(appended, *msg)
	}

	if len(appended) > 0 {
		if err := o.store.AppendMessages(ctx, o.run.ID, appended); err != nil {
			return fmt.Errorf("recording messages: %w", err)
		}
	}
	if len(newChunks) > 0 {
		if err := o.store.AppendChunks(ctx, o.run.ID, newChunks); err != nil {
			return fmt.Errorf("recording chunks: %w", err)
		}
		o.embedChunks(ctx, newChunks)
	}
	return nil
}

// embedChunks embeds chunk texts in parallel batches on the worker pool
// and upserts the vectors. Failed batches are logged and skipped; their
// chunks simply never surface through the vector stage.
func (o *orchestrator) embedChunks(ctx context.Context, chunks []domain.Chunk) {
	cfg := o.run.Config
	var mu sync.Mutex
	var entries []driven.VectorEntry
	var wg sync.WaitGroup

	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vecs, err := retryCall(ctx, "embedding service", cfg.MaxRetries, cfg.RetryBaseDelay,
				func(ctx context.Context) ([][]float32, error) {
					return o.embedder.EmbedBatch(ctx, texts)
				})
			if err != nil {
				logger.Warn("embedding batch failed, %d chunks skipped: %v", len(batch), err)
				return
			}
			mu.Lock()
			for i, vec := range vecs {
				entries = append(entries, driven.VectorEntry{ChunkID: batch[i].ID, Embedding: vec})
			}
			mu.Unlock()
		}
		if err := o.pool.Submit(task); err != nil {
			// Pool rejected the task; run it inline rather than lose the batch.
			task()
		}
	}
	wg.Wait()

	if len(entries) > 0 {
		if err := o.vector.Upsert(ctx, entries); err != nil {
			logger.Warn("vector upsert failed, %d entries skipped: %v", len(entries), err)
		}
	}
}

// rank runs the scoring cascade, selects the top chunks as evidence and
// computes the iteration's novelty and precision signals.
func (o *orchestrator) rank(ctx context.Context) error {
	cfg := o.run.Config
	ranked, err := o.ranker.Rank(ctx, cfg.Question, o.chunkSet, func(messageID string) time.Time {
		if msg := o.messages[messageID]; msg != nil {
			return msg.Date
		}
		return time.Time{}
	})
	if err != nil {
		return err
	}

	n := min(cfg.SelectionTopN, len(ranked))
	o.selection = ranked[:n]

	novel := 0
	relevant := 0
	for _, chunk := range o.selection {
		if _, prev := o.prevSelected[chunk.MessageID]; !prev {
			novel++
		}
		if chunk.Fused >= cfg.RelevanceThreshold {
			relevant++
		}
	}
	if n > 0 {
		o.novelty = float64(novel) / float64(n)
		o.precision = float64(relevant) / float64(n)
	} else {
		o.novelty = 0
		o.precision = 0
	}

	// Selection is recomputed from scratch each iteration.
	for _, msg := range o.messages {
		msg.Selected = false
	}
	for _, chunk := range o.selection {
		if msg := o.messages[chunk.MessageID]; msg != nil {
			msg.Selected = true
			o.prevSelected[chunk.MessageID] = struct{}{}
		}
	}

	o.iterThreads = o.countSelectedThreads()
	logger.Info("iteration %d: %d candidates, novelty %.2f, precision %.2f",
		o.iteration, len(ranked), o.novelty, o.precision)
	return nil
}

func (o *orchestrator) countSelectedThreads() int {
	threads := make(map[string]struct{})
	for _, msg := range o.messages {
		if msg.Selected {
			threads[msg.ThreadID] = struct{}{}
		}
	}
	return len(threads)
}

// iterate closes out one fetch/rank cycle: mines expansion terms,
// records metrics, evaluates the stopping conditions and either loops
// back to fetching or advances to summarisation.
func (o *orchestrator) iterate(ctx context.Context) error {
	cfg := o.run.Config

	var selectedSenders, allSenders []string
	for _, msg := range o.messages {
		allSenders = append(allSenders, msg.From)
		if msg.Selected {
			selectedSenders = append(selectedSenders, msg.From)
		}
	}
	sort.Strings(selectedSenders)
	sort.Strings(allSenders)

	expansion := o.expander.Mine(o.iteration, o.selection, o.chunkSet, selectedSenders, allSenders)
	if len(expansion.Added) > 0 || len(expansion.Decayed) > 0 {
		if err := o.store.AppendTermExpansion(ctx, o.run.ID, expansion); err != nil {
			return fmt.Errorf("recording term expansion: %w", err)
		}
		o.bus.Emit(o.run.ID, domain.EventTermExpanded, domain.TermPayload{
			Iteration: expansion.Iteration,
			Added:     expansion.Added,
			Decayed:   expansion.Decayed,
		})
	}

	o.stopper.Observe(o.novelty, o.precision)
	elapsed := time.Since(o.started)

	stopReason := ""
	if stop, reason := o.stopper.ShouldStop(); stop {
		stopReason = reason
	} else if o.iteration >= cfg.MaxIterations {
		stopReason = "max iterations reached"
	} else if cfg.WallClockBudget > 0 && elapsed >= cfg.WallClockBudget {
		stopReason = "wall-clock budget exhausted"
	} else if len(expansion.Added) == 0 && len(o.expander.Domains()) == 0 {
		stopReason = "no expansion candidates"
	}

	metrics := domain.IterationMetrics{
		Iteration:      o.iteration,
		QueriesTried:   o.iterQueries,
		NewMessages:    o.iterMessages,
		NewThreads:     o.iterThreads,
		TotalChunks:    len(o.chunkSet),
		NoveltyGain:    o.novelty,
		PrecisionProxy: o.precision,
		Duration:       elapsed,
		StopReason:     stopReason,
	}
	o.run.Metrics.History = append(o.run.Metrics.History, metrics)
	o.run.Metrics.Iterations = o.iteration

	progress := float64(o.iteration) / float64(cfg.MaxIterations)
	o.bus.Emit(o.run.ID, domain.EventIterationComplete, domain.IterationPayload{
		Iteration:      o.iteration,
		NoveltyGain:    o.novelty,
		PrecisionProxy: o.precision,
		MessagesFound:  len(o.messages),
		ThreadsFound:   o.iterThreads,
		Elapsed:        elapsed,
		ETA:            domain.EstimateETA(elapsed, progress, cfg.ProgressFloor),
	})

	if stopReason != "" {
		logger.Info("stopping after iteration %d: %s", o.iteration, stopReason)
		return o.advance(ctx, domain.StatusSummarising)
	}

	o.pendingTerms = expansion.Added
	o.iteration++
	return o.advance(ctx, domain.StatusFetching)
}

// summarise groups the selected evidence into threads, produces one
// summary with cited bullets per thread and persists the result.
// Summarisation is optional: exhausted retries degrade a thread to a
// quote-only summary rather than failing the run.
func (o *orchestrator) summarise(ctx context.Context) error {
	cfg := o.run.Config
	o.threads = o.assembleThreads()

	activeTerms := append(contentTerms(cfg.Question), o.expander.Active()...)
	for i := range o.threads {
		thread := &o.threads[i]
		texts := o.threadTexts(thread.ID)

		result, err := retryCall(ctx, "summariser", cfg.MaxRetries, cfg.RetryBaseDelay,
			func(ctx context.Context) (driven.SummaryResult, error) {
				return o.summariser.Summarise(ctx, texts, cfg.Question)
			})
		if err != nil {
			logger.Warn("summariser failed for thread %s, degrading: %v", thread.ID, err)
			result = driven.SummaryResult{Summary: fallbackSummary(texts)}
		}

		thread.Summary = result.Summary
		bullets, err := o.citations.Bullets(result.BulletCandidates, o.threadChunks(thread.ID), o.messages, activeTerms)
		if err != nil {
			return err
		}
		thread.Bullets = bullets
		thread.Confidence = ThreadConfidence(thread.TopScore, thread.MessageCount)
		o.run.Metrics.TotalBullets += len(bullets)
	}

	if err := o.store.SaveThreads(ctx, o.run.ID, o.threads); err != nil {
		return fmt.Errorf("recording threads: %w", err)
	}
	return nil
}

// assembleThreads builds thread records from the selected messages,
// ordered by top fused score descending then thread ID.
func (o *orchestrator) assembleThreads() []domain.Thread {
	byThread := make(map[string]*domain.Thread)
	for _, msg := range o.messages {
		if !msg.Selected {
			continue
		}
		thread := byThread[msg.ThreadID]
		if thread == nil {
			thread = &domain.Thread{ID: msg.ThreadID, First: msg.Date, Last: msg.Date}
			byThread[msg.ThreadID] = thread
		}
		thread.MessageCount++
		if msg.Date.Before(thread.First) {
			thread.First = msg.Date
		}
		if msg.Date.After(thread.Last) {
			thread.Last = msg.Date
		}
		thread.Participants = mergeParticipants(thread.Participants, msg)
	}

	for _, chunk := range o.selection {
		if msg := o.messages[chunk.MessageID]; msg != nil {
			if thread := byThread[msg.ThreadID]; thread != nil && chunk.Fused > thread.TopScore {
				thread.TopScore = chunk.Fused
			}
		}
	}

	threads := make([]domain.Thread, 0, len(byThread))
	for _, thread := range byThread {
		threads = append(threads, *thread)
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].TopScore != threads[j].TopScore {
			return threads[i].TopScore > threads[j].TopScore
		}
		return threads[i].ID < threads[j].ID
	})
	return threads
}

func mergeParticipants(existing []string, msg *domain.Message) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p] = struct{}{}
	}
	for _, p := range append([]string{msg.From}, msg.To...) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			existing = append(existing, p)
		}
	}
	sort.Strings(existing)
	return existing
}

// threadChunks returns the selected chunks of a thread in rank order.
func (o *orchestrator) threadChunks(threadID string) []domain.Chunk {
	var out []domain.Chunk
	for _, chunk := range o.selection {
		if msg := o.messages[chunk.MessageID]; msg != nil && msg.ThreadID == threadID {
			out = append(out, chunk)
		}
	}
	return out
}

func (o *orchestrator) threadTexts(threadID string) []string {
	chunks := o.threadChunks(threadID)
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return texts
}

// fallbackSummary is the degraded summary when the summariser is
// unavailable: the first sentence of the top-ranked chunk.
func fallbackSummary(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	if s := sentencePattern.FindString(texts[0]); s != "" {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(texts[0])
}

// export hands the finished result to the export port. Export is
// mandatory: exhausted retries fail the run.
func (o *orchestrator) export(ctx context.Context) error {
	cfg := o.run.Config
	o.finalise()

	// The artifact describes the completed run, not the in-flight record.
	snapshot := *o.run
	snapshot.Status = domain.StatusDone
	result := driven.RunResult{Run: snapshot, Threads: o.threads}
	_, err := retryCall(ctx, "exporter", cfg.MaxRetries, cfg.RetryBaseDelay,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.exporter.Export(ctx, result)
		})
	if err != nil {
		return &domain.ProviderError{Provider: "exporter", Phase: o.run.Status, Err: err}
	}
	return nil
}

// finalise fills the aggregate metrics once the run reaches DONE.
func (o *orchestrator) finalise() {
	selected := 0
	for _, msg := range o.messages {
		if msg.Selected {
			selected++
		}
	}
	o.run.Metrics.TotalMessages = len(o.messages)
	o.run.Metrics.TotalThreads = len(o.threads)
	o.run.Metrics.TotalChunks = len(o.chunkSet)
	o.run.Metrics.Duration = time.Since(o.started)
	logger.Info("run %s done: %d messages (%d selected), %d threads, %d bullets",
		o.run.ID, len(o.messages), selected, len(o.threads), o.run.Metrics.TotalBullets)
}

// fail records a structured failure reason, persists the run and emits
// the terminal failure event.
func (o *orchestrator) fail(ctx context.Context, cause error) {
	reason := domain.FailureReason{
		Phase:     o.run.Status,
		Provider:  "core",
		Class:     classify(cause),
		Iteration: o.iteration,
		Message:   cause.Error(),
	}
	var perr *domain.ProviderError
	if errors.As(cause, &perr) {
		reason.Provider = perr.Provider
	}

	o.run.Status = domain.StatusFailed
	o.run.Failure = &reason
	o.run.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveRun(context.WithoutCancel(ctx), o.run); err != nil {
		logger.Error("persisting failed run %s: %v", o.run.ID, err)
	}
	o.bus.Emit(o.run.ID, domain.EventRunFailed, domain.FailurePayload{Reason: reason})
	logger.Error("run %s failed: %s", o.run.ID, reason)
}

// markCancelled transitions a cancelled run to its terminal state.
func (o *orchestrator) markCancelled(ctx context.Context) {
	if o.run.Status.IsTerminal() {
		return
	}
	o.run.Status = domain.StatusCancelled
	o.run.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveRun(context.WithoutCancel(ctx), o.run); err != nil {
		logger.Error("persisting cancelled run %s: %v", o.run.ID, err)
	}
	o.bus.Emit(o.run.ID, domain.EventRunCancelled, nil)
	logger.Info("run %s cancelled", o.run.ID)
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		return domain.ClassConfig
	case errors.Is(err, domain.ErrInvariantViolation):
		return domain.ClassInvariant
	case domain.IsTransient(err):
		return domain.ClassTransient
	default:
		return domain.ClassFatal
	}
}

func (o *orchestrator) cleanup() {
	o.pool.Release()
	if err := o.search.Close(); err != nil {
		logger.Warn("closing search engine: %v", err)
	}
	if err := o.vector.Close(); err != nil {
		logger.Warn("closing vector index: %v", err)
	}
}
