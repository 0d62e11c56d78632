package driven

import "context"

// SummaryResult is the output of a summarisation call.
type SummaryResult struct {
	// Summary is the generated thread summary text.
	Summary string

	// BulletCandidates are claim statements proposed by the provider.
	BulletCandidates []string
}

// Summariser generates a summary of chunk texts focused on a topic.
type Summariser interface {
	Summarise(ctx context.Context, texts []string, topic string) (SummaryResult, error)
}
