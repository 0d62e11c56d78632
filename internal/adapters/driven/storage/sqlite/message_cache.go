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

// messageCache implements driven.MessageCache. The cache is global
// across runs; the run-scoped Selected flag is never stored here.
type messageCache struct {
	store *Store
}

var _ driven.MessageCache = (*messageCache)(nil)

// Insert stores msg if no message with its SourceID exists. The insert
// is atomic: concurrent runs inserting the same message race safely and
// both observe the same cached copy.
func (c *messageCache) Insert(ctx context.Context, msg domain.Message) (*domain.Message, bool, error) {
	recipients, err := json.Marshal(msg.To)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling recipients: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, `
		INSERT INTO message_cache (source_id, thread_id, date, sender, recipients, subject, snippet, raw_body, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING
	`, msg.SourceID, msg.ThreadID, msg.Date.Format(time.RFC3339Nano), msg.From,
		string(recipients), msg.Subject, msg.Snippet, msg.RawBody, msg.Body)
	if err != nil {
		return nil, false, fmt.Errorf("inserting cached message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking insert result: %w", err)
	}

	cached, err := c.Get(ctx, msg.SourceID)
	if err != nil {
		return nil, false, err
	}
	return cached, affected > 0, nil
}

// Get retrieves a cached message by source identifier.
func (c *messageCache) Get(ctx context.Context, sourceID string) (*domain.Message, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT source_id, thread_id, date, sender, recipients, subject, snippet, raw_body, body
		FROM message_cache WHERE source_id = ?
	`, sourceID)

	var msg domain.Message
	var date, recipients string
	err := row.Scan(&msg.SourceID, &msg.ThreadID, &date, &msg.From, &recipients,
		&msg.Subject, &msg.Snippet, &msg.RawBody, &msg.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning cached message: %w", err)
	}

	if err := json.Unmarshal([]byte(recipients), &msg.To); err != nil {
		return nil, fmt.Errorf("unmarshalling recipients: %w", err)
	}
	if msg.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return nil, fmt.Errorf("parsing date: %w", err)
	}
	return &msg, nil
}
