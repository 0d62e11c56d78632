package services

import (
	"regexp"
	"strings"
)

// termPattern keeps alphanumeric runs with internal hyphens so reference
// numbers like RMA-2025-0847 survive tokenisation intact.
var termPattern = regexp.MustCompile(`[a-z0-9]+(?:-[a-z0-9]+)*`)

// tokenise lowercases text and extracts term tokens of length >= 3.
func tokenise(text string) []string {
	return termPattern.FindAllString(strings.ToLower(text), -1)
}

// contentTerms returns the deduplicated non-stopword tokens of text in
// first-occurrence order.
func contentTerms(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokenise(text) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := queryStopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// queryStopwords are tokens with no retrieval value. The list is short
// on purpose: over-filtering hurts recall more than the odd noise term.
var queryStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"with": {}, "that": {}, "this": {}, "these": {}, "those": {},
	"from": {}, "have": {}, "has": {}, "had": {}, "will": {}, "would": {},
	"can": {}, "could": {}, "should": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "how": {}, "why": {}, "did": {},
	"does": {}, "about": {}, "into": {}, "over": {}, "under": {},
	"after": {}, "before": {}, "been": {}, "being": {}, "they": {},
	"them": {}, "their": {}, "our": {}, "your": {}, "you": {}, "please": {},
	"regards": {}, "dear": {}, "thanks": {}, "thank": {}, "not": {},
	"all": {}, "any": {}, "out": {}, "its": {}, "per": {}, "via": {},
}
