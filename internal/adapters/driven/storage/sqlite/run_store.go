package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveRun inserts or updates the run record.
func (s *runStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil {
		return domain.ErrInvalidInput
	}

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("marshalling metrics: %w", err)
	}
	var failureJSON sql.NullString
	if run.Failure != nil {
		data, err := json.Marshal(run.Failure)
		if err != nil {
			return fmt.Errorf("marshalling failure: %w", err)
		}
		failureJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, config, status, metrics, failure, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config = excluded.config,
			status = excluded.status,
			metrics = excluded.metrics,
			failure = excluded.failure,
			updated_at = excluded.updated_at
	`, run.ID, string(configJSON), string(run.Status), string(metricsJSON), failureJSON,
		run.CreatedAt.Format(time.RFC3339Nano), run.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, config, status, metrics, failure, created_at, updated_at
		FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all stored runs, newest first.
func (s *runStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, config, status, metrics, failure, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// AppendQueries records executed queries for a run.
func (s *runStore) AppendQueries(ctx context.Context, runID string, queries []domain.Query) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range queries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_queries (run_id, iteration, operator, rationale, hits, new_messages, new_threads, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, q.Iteration, q.Operator, q.Rationale, q.Hits, q.NewMessages, q.NewThreads, q.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("appending query: %w", err)
			}
		}
		return nil
	})
}

// AppendMessages records fetched messages for a run.
func (s *runStore) AppendMessages(ctx context.Context, runID string, messages []domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, msg := range messages {
			recipients, err := json.Marshal(msg.To)
			if err != nil {
				return fmt.Errorf("marshalling recipients: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO run_messages (run_id, source_id, thread_id, date, sender, recipients, subject, snippet, body, selected)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(run_id, source_id) DO UPDATE SET
					body = excluded.body,
					selected = excluded.selected
			`, runID, msg.SourceID, msg.ThreadID, msg.Date.Format(time.RFC3339Nano),
				msg.From, string(recipients), msg.Subject, msg.Snippet, msg.Body, boolToInt(msg.Selected))
			if err != nil {
				return fmt.Errorf("appending message: %w", err)
			}
		}
		return nil
	})
}

// AppendChunks records chunks for a run.
func (s *runStore) AppendChunks(ctx context.Context, runID string, chunks []domain.Chunk) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, chunk := range chunks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_chunks (run_id, id, message_id, position, content, token_count, lexical, vector, rerank, fused)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(run_id, id) DO UPDATE SET
					lexical = excluded.lexical,
					vector = excluded.vector,
					rerank = excluded.rerank,
					fused = excluded.fused
			`, runID, chunk.ID, chunk.MessageID, chunk.Position, chunk.Text, chunk.TokenCount,
				nullFloat(chunk.Lexical), nullFloat(chunk.Vector), nullFloat(chunk.Rerank), chunk.Fused)
			if err != nil {
				return fmt.Errorf("appending chunk: %w", err)
			}
		}
		return nil
	})
}

// AppendTermExpansion records one iteration's term changes.
func (s *runStore) AppendTermExpansion(ctx context.Context, runID string, exp domain.TermExpansion) error {
	added, err := json.Marshal(exp.Added)
	if err != nil {
		return fmt.Errorf("marshalling added terms: %w", err)
	}
	evidence, err := json.Marshal(exp.Evidence)
	if err != nil {
		return fmt.Errorf("marshalling evidence: %w", err)
	}
	decayed, err := json.Marshal(exp.Decayed)
	if err != nil {
		return fmt.Errorf("marshalling decayed terms: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO run_term_expansions (run_id, iteration, added, evidence, decayed)
		VALUES (?, ?, ?, ?, ?)
	`, runID, exp.Iteration, string(added), string(evidence), string(decayed))
	if err != nil {
		return fmt.Errorf("appending term expansion: %w", err)
	}
	return nil
}

// SaveThreads stores the summarised threads with their bullets.
func (s *runStore) SaveThreads(ctx context.Context, runID string, threads []domain.Thread) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, thread := range threads {
			participants, err := json.Marshal(thread.Participants)
			if err != nil {
				return fmt.Errorf("marshalling participants: %w", err)
			}
			bullets, err := json.Marshal(thread.Bullets)
			if err != nil {
				return fmt.Errorf("marshalling bullets: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO run_threads (run_id, id, participants, first_date, last_date, top_score, message_count, summary, confidence, bullets)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(run_id, id) DO UPDATE SET
					participants = excluded.participants,
					first_date = excluded.first_date,
					last_date = excluded.last_date,
					top_score = excluded.top_score,
					message_count = excluded.message_count,
					summary = excluded.summary,
					confidence = excluded.confidence,
					bullets = excluded.bullets
			`, runID, thread.ID, string(participants),
				thread.First.Format(time.RFC3339Nano), thread.Last.Format(time.RFC3339Nano),
				thread.TopScore, thread.MessageCount, thread.Summary, thread.Confidence, string(bullets))
			if err != nil {
				return fmt.Errorf("saving thread: %w", err)
			}
		}
		return nil
	})
}

// GetThreads retrieves the stored threads for a run, best first.
func (s *runStore) GetThreads(ctx context.Context, runID string) ([]domain.Thread, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, participants, first_date, last_date, top_score, message_count, summary, confidence, bullets
		FROM run_threads WHERE run_id = ?
		ORDER BY top_score DESC, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var thread domain.Thread
		var participants, bullets, first, last string
		if err := rows.Scan(&thread.ID, &participants, &first, &last, &thread.TopScore,
			&thread.MessageCount, &thread.Summary, &thread.Confidence, &bullets); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		if err := json.Unmarshal([]byte(participants), &thread.Participants); err != nil {
			return nil, fmt.Errorf("unmarshalling participants: %w", err)
		}
		if err := json.Unmarshal([]byte(bullets), &thread.Bullets); err != nil {
			return nil, fmt.Errorf("unmarshalling bullets: %w", err)
		}
		if thread.First, err = time.Parse(time.RFC3339Nano, first); err != nil {
			return nil, fmt.Errorf("parsing first date: %w", err)
		}
		if thread.Last, err = time.Parse(time.RFC3339Nano, last); err != nil {
			return nil, fmt.Errorf("parsing last date: %w", err)
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}
	return threads, nil
}

// Close is a no-op; the underlying Store owns the connection.
func (s *runStore) Close() error { return nil }

func (s *runStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var config, status, metrics, created, updated string
	var failure sql.NullString

	if err := row.Scan(&run.ID, &config, &status, &metrics, &failure, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshalling metrics: %w", err)
	}
	if failure.Valid {
		run.Failure = &domain.FailureReason{}
		if err := json.Unmarshal([]byte(failure.String), run.Failure); err != nil {
			return nil, fmt.Errorf("unmarshalling failure: %w", err)
		}
	}
	run.Status = domain.RunStatus(status)

	var err error
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
