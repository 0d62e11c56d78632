package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driving"
	"github.com/custodia-labs/mailsleuth/internal/events"
)

// Ensure Service implements the interface.
var _ driving.RunService = (*Service)(nil)

// Providers bundles the driven ports a run needs. Source, Embedder,
// Summariser, Exporter, Grammar, Store and Cache are required; Reranker
// may be nil. The index factories produce the run-scoped lexical and
// vector indexes, one pair per run.
type Providers struct {
	Source     driven.MessageSource
	Embedder   driven.EmbeddingService
	Reranker   driven.Reranker
	Summariser driven.Summariser
	Exporter   driven.Exporter
	Grammar    driven.QueryGrammar
	Store      driven.RunStore
	Cache      driven.MessageCache

	NewSearchEngine func() driven.SearchEngine
	NewVectorIndex  func(dimensions int) (driven.VectorIndex, error)
}

// Service implements the run lifecycle API. Runs execute independently;
// the service only tracks which are active so cancellation can reach
// them.
type Service struct {
	providers Providers
	bus       *events.Bus

	mu     sync.Mutex
	active map[string]*orchestrator
}

// NewService creates the run service.
func NewService(providers Providers, bus *events.Bus) *Service {
	return &Service{
		providers: providers,
		bus:       bus,
		active:    make(map[string]*orchestrator),
	}
}

// CreateRun validates the configuration and records a new queued run.
func (s *Service) CreateRun(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:        uuid.NewString(),
		Config:    cfg,
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.providers.Store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persisting new run: %w", err)
	}
	return run, nil
}

// Execute drives the run to a terminal state, blocking until it gets
// there. A run can execute at most once.
func (s *Service) Execute(ctx context.Context, runID string) error {
	run, err := s.providers.Store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("%w: run %s is %s", domain.ErrRunTerminal, runID, run.Status)
	}

	orch, err := newOrchestrator(run, s.providers, s.bus)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.active[runID]; exists {
		s.mu.Unlock()
		orch.cleanup()
		return fmt.Errorf("%w: run %s", domain.ErrRunActive, runID)
	}
	s.active[runID] = orch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, runID)
		s.mu.Unlock()
	}()
	return orch.execute(ctx)
}

// Cancel requests cancellation of an active run, or directly cancels a
// queued run that never started executing.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	s.mu.Lock()
	orch := s.active[runID]
	s.mu.Unlock()
	if orch != nil {
		orch.requestCancel()
		return nil
	}

	run, err := s.providers.Store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("%w: run %s is %s", domain.ErrRunTerminal, runID, run.Status)
	}

	run.Status = domain.StatusCancelled
	run.UpdatedAt = time.Now().UTC()
	if err := s.providers.Store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("persisting cancelled run: %w", err)
	}
	s.bus.Emit(runID, domain.EventRunCancelled, nil)
	return nil
}

// Get returns the current run record.
func (s *Service) Get(ctx context.Context, runID string) (*domain.Run, error) {
	return s.providers.Store.GetRun(ctx, runID)
}

// Subscribe returns an ordered event channel for the run.
func (s *Service) Subscribe(runID string) (<-chan domain.Event, func()) {
	return s.bus.Subscribe(runID)
}
