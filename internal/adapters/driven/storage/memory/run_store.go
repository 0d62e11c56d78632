// Package memory provides in-memory implementations of the storage
// ports. They are used in tests and for ephemeral runs where nothing
// should outlive the process. All operations are thread-safe and all
// stored values are copies; callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory run store.
type RunStore struct {
	mu         sync.RWMutex
	runs       map[string]domain.Run
	queries    map[string][]domain.Query
	messages   map[string][]domain.Message
	chunks     map[string][]domain.Chunk
	expansions map[string][]domain.TermExpansion
	threads    map[string][]domain.Thread
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:       make(map[string]domain.Run),
		queries:    make(map[string][]domain.Query),
		messages:   make(map[string][]domain.Message),
		chunks:     make(map[string][]domain.Chunk),
		expansions: make(map[string][]domain.TermExpansion),
		threads:    make(map[string][]domain.Thread),
	}
}

// SaveRun inserts or updates the run record.
func (s *RunStore) SaveRun(_ context.Context, run *domain.Run) error {
	if run == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = copyRun(*run)
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	out := copyRun(run)
	return &out, nil
}

// ListRuns returns all stored runs, newest first.
func (s *RunStore) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

// AppendQueries records executed queries for a run.
func (s *RunStore) AppendQueries(_ context.Context, runID string, queries []domain.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[runID] = append(s.queries[runID], queries...)
	return nil
}

// AppendMessages records fetched messages for a run.
func (s *RunStore) AppendMessages(_ context.Context, runID string, messages []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[runID] = append(s.messages[runID], messages...)
	return nil
}

// AppendChunks records chunks for a run.
func (s *RunStore) AppendChunks(_ context.Context, runID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[runID] = append(s.chunks[runID], chunks...)
	return nil
}

// AppendTermExpansion records one iteration's term changes.
func (s *RunStore) AppendTermExpansion(_ context.Context, runID string, exp domain.TermExpansion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expansions[runID] = append(s.expansions[runID], exp)
	return nil
}

// SaveThreads stores the summarised threads with their bullets.
func (s *RunStore) SaveThreads(_ context.Context, runID string, threads []domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[runID] = append([]domain.Thread(nil), threads...)
	return nil
}

// GetThreads retrieves the stored threads for a run.
func (s *RunStore) GetThreads(_ context.Context, runID string) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Thread(nil), s.threads[runID]...), nil
}

// Queries returns the recorded queries for a run. Test helper.
func (s *RunStore) Queries(runID string) []domain.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Query(nil), s.queries[runID]...)
}

// Expansions returns the recorded term expansions for a run. Test helper.
func (s *RunStore) Expansions(runID string) []domain.TermExpansion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TermExpansion(nil), s.expansions[runID]...)
}

// Close releases resources.
func (s *RunStore) Close() error { return nil }

func copyRun(run domain.Run) domain.Run {
	out := run
	if run.Failure != nil {
		failure := *run.Failure
		out.Failure = &failure
	}
	out.Metrics.History = append([]domain.IterationMetrics(nil), run.Metrics.History...)
	return out
}
