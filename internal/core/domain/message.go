package domain

import "time"

// Message is a fetched evidence item. Messages are deduplicated globally
// by SourceID through the message cache; the Selected flag is run-scoped
// and never shared across runs.
type Message struct {
	// SourceID is the message identifier in the external source.
	SourceID string

	// ThreadID groups messages belonging to one conversation.
	ThreadID string

	// Date is the message send time.
	Date time.Time

	// From is the sender address.
	From string

	// To lists recipient addresses.
	To []string

	// Subject is the message subject line.
	Subject string

	// Snippet is the short preview returned by the source search.
	Snippet string

	// RawBody is the body as fetched, possibly containing markup.
	RawBody string

	// Body is the normalised plain-text body.
	Body string

	// Selected marks the message as evidence within the current run.
	Selected bool
}

// Thread is a logical grouping of selected messages sharing a thread
// identifier, computed on demand after ranking.
type Thread struct {
	ID           string
	Participants []string
	First        time.Time
	Last         time.Time
	TopScore     float64
	MessageCount int
	Summary      string
	Confidence   float64
	Bullets      []Bullet
}
