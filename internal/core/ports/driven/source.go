package driven

import (
	"context"
	"time"
)

// MessageMeta is the lightweight search result returned by a message source.
type MessageMeta struct {
	SourceID string
	ThreadID string
	Date     time.Time
	From     string
	Subject  string
	Snippet  string
}

// MessageBody is a fetched message body.
type MessageBody struct {
	SourceID string
	Body     string
	To       []string
}

// MessageSource provides search and retrieval over an external message
// corpus. Implementations translate the operator strings produced by the
// query planner into source-native searches.
type MessageSource interface {
	// Search executes one search-operator string and returns matching
	// message metadata.
	Search(ctx context.Context, operator string) ([]MessageMeta, error)

	// FetchBodies retrieves full bodies for the given message identifiers.
	FetchBodies(ctx context.Context, sourceIDs []string) ([]MessageBody, error)
}
