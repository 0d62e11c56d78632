// Package fixture implements the MessageSource port over a built-in
// corpus of equipment-return email threads. It supports offline runs
// and the end-to-end scenario tests; search matching approximates the
// Gmail operator grammar closely enough for fixture-scale corpora.
package fixture

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MessageSource = (*Source)(nil)

// Source serves the fixture corpus.
type Source struct {
	mu             sync.Mutex
	messages       []fixtureMessage
	searchFailures int
	fetchFailures  int
}

type fixtureMessage struct {
	sourceID string
	threadID string
	date     time.Time
	from     string
	to       []string
	subject  string
	snippet  string
	body     string
}

// Option configures the source.
type Option func(*Source)

// WithSearchFailures makes the first n Search calls fail transiently.
// Used to exercise the retry path in tests.
func WithSearchFailures(n int) Option {
	return func(s *Source) { s.searchFailures = n }
}

// WithFetchFailures makes the first n FetchBodies calls fail transiently.
func WithFetchFailures(n int) Option {
	return func(s *Source) { s.fetchFailures = n }
}

// New creates a fixture source over the built-in corpus.
func New(opts ...Option) *Source {
	s := &Source{messages: corpus()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	quotedPattern = regexp.MustCompile(`"([^"]+)"`)
	afterPattern  = regexp.MustCompile(`after:(\d{4}/\d{2}/\d{2})`)
	beforePattern = regexp.MustCompile(`before:(\d{4}/\d{2}/\d{2})`)
	fromPattern   = regexp.MustCompile(`from:(\S+)`)
)

// Search matches messages whose subject or body contains any quoted
// phrase or bare term from the operator, honouring after:/before:/from:
// constraints.
func (s *Source) Search(_ context.Context, operator string) ([]driven.MessageMeta, error) {
	s.mu.Lock()
	if s.searchFailures > 0 {
		s.searchFailures--
		s.mu.Unlock()
		return nil, domain.TransientError("message source", errTimeout)
	}
	s.mu.Unlock()

	terms, after, before, fromDomains := parseOperator(operator)
	if len(terms) == 0 {
		return nil, nil
	}

	var metas []driven.MessageMeta
	for _, msg := range s.messages {
		if !after.IsZero() && msg.date.Before(after) {
			continue
		}
		if !before.IsZero() && !msg.date.Before(before) {
			continue
		}
		if len(fromDomains) > 0 && !matchesDomain(msg.from, fromDomains) {
			continue
		}

		haystack := strings.ToLower(msg.subject + " " + msg.body)
		matched := false
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		metas = append(metas, driven.MessageMeta{
			SourceID: msg.sourceID,
			ThreadID: msg.threadID,
			Date:     msg.date,
			From:     msg.from,
			Subject:  msg.subject,
			Snippet:  msg.snippet,
		})
	}
	return metas, nil
}

// FetchBodies retrieves full bodies for the given identifiers.
func (s *Source) FetchBodies(_ context.Context, sourceIDs []string) ([]driven.MessageBody, error) {
	s.mu.Lock()
	if s.fetchFailures > 0 {
		s.fetchFailures--
		s.mu.Unlock()
		return nil, domain.TransientError("message source", errTimeout)
	}
	s.mu.Unlock()

	want := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		want[id] = struct{}{}
	}

	var bodies []driven.MessageBody
	for _, msg := range s.messages {
		if _, ok := want[msg.sourceID]; ok {
			bodies = append(bodies, driven.MessageBody{
				SourceID: msg.sourceID,
				Body:     msg.body,
				To:       msg.to,
			})
		}
	}
	return bodies, nil
}

var errTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "simulated timeout" }

func parseOperator(operator string) (terms []string, after, before time.Time, fromDomains []string) {
	if m := afterPattern.FindStringSubmatch(operator); m != nil {
		after, _ = time.Parse("2006/01/02", m[1])
	}
	if m := beforePattern.FindStringSubmatch(operator); m != nil {
		before, _ = time.Parse("2006/01/02", m[1])
	}
	for _, m := range fromPattern.FindAllStringSubmatch(operator, -1) {
		fromDomains = append(fromDomains, strings.ToLower(m[1]))
	}

	stripped := fromPattern.ReplaceAllString(
		beforePattern.ReplaceAllString(afterPattern.ReplaceAllString(operator, " "), " "), " ")

	for _, m := range quotedPattern.FindAllStringSubmatch(stripped, -1) {
		terms = append(terms, strings.ToLower(m[1]))
	}
	stripped = quotedPattern.ReplaceAllString(stripped, " ")

	for _, field := range strings.Fields(stripped) {
		field = strings.Trim(field, "()")
		if field == "" || field == "OR" || field == "AND" {
			continue
		}
		terms = append(terms, strings.ToLower(field))
	}
	return terms, after, before, fromDomains
}

func matchesDomain(from string, domains []string) bool {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return false
	}
	senderDomain := strings.ToLower(from[at+1:])
	for _, d := range domains {
		if senderDomain == d {
			return true
		}
	}
	return false
}
