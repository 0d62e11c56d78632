package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// CitationBuilder attaches verbatim quotes and citation tuples to claim
// candidates. Every bullet it produces cites a message marked selected
// in the current run; a candidate for which no qualifying quote exists
// is dropped rather than cited loosely.
type CitationBuilder struct {
	minQuoteTokens int
}

// NewCitationBuilder creates a builder with the minimum quote length.
func NewCitationBuilder(minQuoteTokens int) *CitationBuilder {
	return &CitationBuilder{minQuoteTokens: minQuoteTokens}
}

// Bullets pairs each claim candidate with its best supporting sentence
// from the thread's selected chunks. A qualifying sentence has at least
// the minimum token count, shares vocabulary with the claim, and
// contains at least one active query or expanded term. It returns
// ErrInvariantViolation if a supporting chunk belongs to a message not
// marked selected; that is a programming error, not bad input.
func (b *CitationBuilder) Bullets(candidates []string, chunks []domain.Chunk, messages map[string]*domain.Message, activeTerms []string) ([]domain.Bullet, error) {
	active := make(map[string]struct{}, len(activeTerms))
	for _, t := range activeTerms {
		active[strings.ToLower(t)] = struct{}{}
	}

	type span struct {
		text      string
		messageID string
		terms     map[string]struct{}
		hasActive bool
	}
	var spans []span
	for _, chunk := range chunks {
		for _, raw := range sentencePattern.FindAllString(chunk.Text, -1) {
			sentence := strings.TrimSpace(raw)
			toks := tokenise(sentence)
			if len(toks) < b.minQuoteTokens {
				continue
			}
			terms := make(map[string]struct{}, len(toks))
			hasActive := false
			for _, tok := range toks {
				terms[tok] = struct{}{}
				if _, ok := active[tok]; ok {
					hasActive = true
				}
			}
			spans = append(spans, span{sentence, chunk.MessageID, terms, hasActive})
		}
	}

	var bullets []domain.Bullet
	used := make(map[string]struct{})
	for _, claim := range candidates {
		claimTerms := contentTerms(claim)
		if len(claimTerms) == 0 {
			continue
		}

		bestIdx, bestScore := -1, 0.0
		for i, sp := range spans {
			if _, dup := used[sp.text]; dup {
				continue
			}
			// A quote with no active term is not evidence for this run,
			// however well it overlaps the claim.
			if !sp.hasActive {
				continue
			}
			overlap := 0
			for _, t := range claimTerms {
				if _, ok := sp.terms[t]; ok {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			score := float64(overlap) / float64(len(claimTerms))
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		if bestIdx < 0 {
			logger.Debug("citations: no qualifying quote for claim %q, dropped", claim)
			continue
		}

		sp := spans[bestIdx]
		msg := messages[sp.messageID]
		if msg == nil || !msg.Selected {
			return nil, fmt.Errorf("%w: bullet cites message %s which is not selected",
				domain.ErrInvariantViolation, sp.messageID)
		}
		used[sp.text] = struct{}{}
		bullets = append(bullets, domain.Bullet{
			Claim:     claim,
			Quote:     sp.text,
			MessageID: msg.SourceID,
			ThreadID:  msg.ThreadID,
			Date:      msg.Date,
		})
	}
	return bullets, nil
}

// ThreadConfidence maps a thread's top fused score and selected message
// count to a [0,1] confidence. Monotonically non-decreasing in both
// inputs: more evidence never lowers confidence.
func ThreadConfidence(topScore float64, messageCount int) float64 {
	if topScore < 0 {
		topScore = 0
	}
	if topScore > 1 {
		topScore = 1
	}
	if messageCount < 0 {
		messageCount = 0
	}
	support := float64(messageCount) / float64(messageCount+2)
	return 0.7*topScore + 0.3*support
}
