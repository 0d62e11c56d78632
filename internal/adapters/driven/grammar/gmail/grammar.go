// Package gmail implements the QueryGrammar port for Gmail search
// operators. The planner stays generic; only this package knows the
// operator spelling.
package gmail

import (
	"strings"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Grammar implements the interface.
var _ driven.QueryGrammar = (*Grammar)(nil)

// Grammar formats Gmail search operators.
type Grammar struct{}

// New creates a Gmail grammar.
func New() *Grammar {
	return &Grammar{}
}

// Phrase quotes a term for exact matching.
func (g *Grammar) Phrase(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, "") + `"`
}

// Or groups alternatives: (a OR b OR c).
func (g *Grammar) Or(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// And conjoins required parts with Gmail's implicit-AND whitespace.
func (g *Grammar) And(parts []string) string {
	return strings.Join(parts, " ")
}

// After formats the lower date bound.
func (g *Grammar) After(t time.Time) string {
	return "after:" + t.Format("2006/01/02")
}

// Before formats the upper date bound.
func (g *Grammar) Before(t time.Time) string {
	return "before:" + t.Format("2006/01/02")
}

// FromDomain restricts senders to a domain.
func (g *Grammar) FromDomain(domain string) string {
	return "from:" + domain
}
