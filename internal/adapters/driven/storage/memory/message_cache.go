package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure MessageCache implements the interface.
var _ driven.MessageCache = (*MessageCache)(nil)

// MessageCache is the in-memory global message dedup cache. Selected is
// a run-scoped flag and is stripped on insert.
type MessageCache struct {
	mu       sync.RWMutex
	messages map[string]domain.Message
}

// NewMessageCache creates an empty message cache.
func NewMessageCache() *MessageCache {
	return &MessageCache{messages: make(map[string]domain.Message)}
}

// Insert stores msg if no message with its SourceID exists. It returns
// the message now in the cache and whether msg was inserted.
func (c *MessageCache) Insert(_ context.Context, msg domain.Message) (*domain.Message, bool, error) {
	if msg.SourceID == "" {
		return nil, false, fmt.Errorf("%w: message has no source ID", domain.ErrInvalidInput)
	}
	msg.Selected = false

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.messages[msg.SourceID]; ok {
		out := existing
		return &out, false, nil
	}
	c.messages[msg.SourceID] = msg
	out := msg
	return &out, true, nil
}

// Get retrieves a cached message by source identifier.
func (c *MessageCache) Get(_ context.Context, sourceID string) (*domain.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.messages[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, sourceID)
	}
	out := msg
	return &out, nil
}

// Len returns the number of cached messages. Test helper.
func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
