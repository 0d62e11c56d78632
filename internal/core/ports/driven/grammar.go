package driven

import "time"

// QueryGrammar formats query-planner output into the operator syntax of
// a concrete message source. The planner is generic over the target
// grammar; only the formatter knows operator spelling.
type QueryGrammar interface {
	// Phrase quotes a term or phrase for exact matching.
	Phrase(term string) string

	// Or groups alternatives.
	Or(parts []string) string

	// And conjoins required parts.
	And(parts []string) string

	// After and Before format date bounds.
	After(t time.Time) string
	Before(t time.Time) string

	// FromDomain restricts senders to a domain.
	FromDomain(domain string) string
}
