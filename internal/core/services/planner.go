package services

import (
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

// maxSeedQueries bounds the first-iteration query batch.
const maxSeedQueries = 5

// maxExpandedQueries bounds each later iteration's query batch.
const maxExpandedQueries = 3

// Planner turns the question and mined terms into source-native search
// operators. Operator strings are deduplicated for the lifetime of the
// run: an operator that already executed is never re-issued, regardless
// of which iteration proposed it.
type Planner struct {
	grammar driven.QueryGrammar
	cfg     domain.RunConfig

	// anchors are the question's content terms, most significant first.
	anchors []string

	seen map[string]struct{}
}

// NewPlanner creates a run-scoped planner.
func NewPlanner(grammar driven.QueryGrammar, cfg domain.RunConfig) *Planner {
	return &Planner{
		grammar: grammar,
		cfg:     cfg,
		anchors: contentTerms(cfg.Question),
		seen:    make(map[string]struct{}),
	}
}

// Seed derives the first-iteration queries from the question alone:
// a broad OR over all content terms, a narrow AND over the leading
// terms, a leading-bigram phrase, and one domain-restricted variant per
// configured sender domain, capped at five.
func (p *Planner) Seed() []domain.Query {
	var operators []string

	if len(p.anchors) == 0 {
		logger.Warn("question has no content terms, falling back to raw text")
		operators = append(operators, p.grammar.Phrase(strings.TrimSpace(p.cfg.Question)))
	} else {
		phrases := make([]string, len(p.anchors))
		for i, t := range p.anchors {
			phrases[i] = p.grammar.Phrase(t)
		}
		operators = append(operators, p.grammar.Or(phrases))

		if len(p.anchors) >= 2 {
			n := min(3, len(p.anchors))
			operators = append(operators, p.grammar.And(phrases[:n]))
			operators = append(operators, p.grammar.Phrase(p.anchors[0]+" "+p.anchors[1]))
		}

		for _, d := range p.cfg.Domains {
			operators = append(operators, p.grammar.And([]string{
				p.grammar.FromDomain(d),
				p.grammar.Or(phrases[:min(4, len(phrases))]),
			}))
		}
	}

	if len(operators) > maxSeedQueries {
		operators = operators[:maxSeedQueries]
	}

	var queries []domain.Query
	for _, op := range operators {
		op = p.withBounds(op)
		if !p.record(op) {
			continue
		}
		queries = append(queries, domain.Query{
			Iteration: 1,
			Operator:  op,
			Rationale: domain.RationaleSeed,
		})
	}
	return queries
}

// Expanded derives follow-up queries from terms mined in the previous
// iteration. Terms are split round-robin into at most three groups; each
// group is ORed together and anchored to the question's leading term so
// expansion cannot drift off topic. Mined sender domains fill any spare
// slot. The returned groups parallel the queries so callers can
// attribute zero-yield queries back to the terms that produced them.
func (p *Planner) Expanded(iteration int, added, domains []string) ([]domain.Query, [][]string) {
	if len(added) == 0 && len(domains) == 0 {
		return nil, nil
	}

	groupCount := min(maxExpandedQueries, len(added))
	groups := make([][]string, groupCount)
	for i, term := range added {
		groups[i%groupCount] = append(groups[i%groupCount], term)
	}

	var queries []domain.Query
	var usedGroups [][]string
	for _, group := range groups {
		phrases := make([]string, len(group))
		for i, t := range group {
			phrases[i] = p.grammar.Phrase(t)
		}
		op := p.grammar.Or(phrases)
		if len(p.anchors) > 0 {
			op = p.grammar.And([]string{p.grammar.Phrase(p.anchors[0]), op})
		}
		op = p.withBounds(op)
		if !p.record(op) {
			continue
		}
		queries = append(queries, domain.Query{
			Iteration: iteration,
			Operator:  op,
			Rationale: domain.RationaleExpanded,
		})
		usedGroups = append(usedGroups, group)
	}

	// One domain-restricted probe when there is room for it.
	if len(queries) < maxExpandedQueries && len(domains) > 0 && len(p.anchors) > 0 {
		op := p.withBounds(p.grammar.And([]string{
			p.grammar.FromDomain(domains[0]),
			p.grammar.Phrase(p.anchors[0]),
		}))
		if p.record(op) {
			queries = append(queries, domain.Query{
				Iteration: iteration,
				Operator:  op,
				Rationale: domain.RationaleExpanded,
			})
			usedGroups = append(usedGroups, nil)
		}
	}

	return queries, usedGroups
}

// withBounds appends the run's date constraints to an operator.
func (p *Planner) withBounds(op string) string {
	parts := []string{op}
	if !p.cfg.After.IsZero() {
		parts = append(parts, p.grammar.After(p.cfg.After))
	}
	if !p.cfg.Before.IsZero() {
		parts = append(parts, p.grammar.Before(p.cfg.Before))
	}
	if len(parts) == 1 {
		return op
	}
	return p.grammar.And(parts)
}

// record registers an operator, reporting false on a duplicate.
func (p *Planner) record(op string) bool {
	if _, dup := p.seen[op]; dup {
		logger.Debug("planner: skipping duplicate operator %q", op)
		return false
	}
	p.seen[op] = struct{}{}
	return true
}
