package local

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
)

// Ensure Summariser implements the interface.
var _ driven.Summariser = (*Summariser)(nil)

// DefaultMaxSentences bounds extractive summary length.
const DefaultMaxSentences = 5

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// Summariser produces extractive summaries by frequency-ranking
// sentences, with topic terms up-weighted.
type Summariser struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// NewSummariser creates a frequency-based extractive summariser.
func NewSummariser() *Summariser {
	return &Summariser{
		maxSentences: DefaultMaxSentences,
		stopwords:    defaultStopwords(),
	}
}

// Summarise ranks sentences across the chunk texts by token frequency
// and topic overlap, returning the top sentences in document order.
func (s *Summariser) Summarise(_ context.Context, texts []string, topic string) (driven.SummaryResult, error) {
	joined := strings.Join(texts, "\n")
	sentences := splitSentences(joined)
	if len(sentences) == 0 {
		return driven.SummaryResult{Summary: strings.TrimSpace(joined)}, nil
	}

	topicTerms := make(map[string]struct{})
	for _, tok := range s.tokens(topic) {
		topicTerms[tok] = struct{}{}
	}

	// Token frequencies across the whole input
	freq := make(map[string]float64)
	for _, sentence := range sentences {
		for _, tok := range s.tokens(sentence) {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sentence := range sentences {
		toks := s.tokens(sentence)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
			if _, topical := topicTerms[tok]; topical {
				score += 1.0
			}
		}
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		ranked[i] = scored{i, score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := s.maxSentences
	if n > len(ranked) {
		n = len(ranked)
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = ranked[i].idx
	}
	sort.Ints(selected)

	bullets := make([]string, 0, n)
	parts := make([]string, 0, n)
	for _, idx := range selected {
		sentence := strings.TrimSpace(sentences[idx])
		parts = append(parts, sentence)
		bullets = append(bullets, sentence)
	}

	return driven.SummaryResult{
		Summary:          strings.Join(parts, " "),
		BulletCandidates: bullets,
	}, nil
}

func splitSentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Summariser) tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to",
		"of", "in", "on", "at", "by", "with", "as", "is", "are", "was",
		"were", "be", "been", "it", "this", "that", "these", "those",
		"from", "we", "you", "your", "our", "will", "would", "can",
		"please", "regards", "dear", "thanks", "thank",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
