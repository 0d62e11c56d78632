package services

import (
	"sort"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

// decayMisses is how many zero-yield iterations retire a mined term.
const decayMisses = 2

// evidenceTerms bounds the co-occurrence evidence recorded per round.
const evidenceTerms = 5

// termContrast is the minimum ratio of a term's share of the top chunks
// to its share of the whole corpus. Terms common everywhere never clear
// it, however often they appear in the top set.
const termContrast = 2.0

// domainContrast is the minimum over-representation of a sender domain
// among selected messages relative to all fetched messages.
const domainContrast = 1.5

// Expander mines new query vocabulary from the top-ranked chunks of an
// iteration. Mined terms stay active until they fail to surface new
// messages twice, after which they decay: retired from query generation
// but kept in the audit trail.
type Expander struct {
	max int

	questionTerms map[string]struct{}

	active  map[string]*termState
	order   []string
	domains []string

	domainSeen   map[string]struct{}
	pendingDecay []string
}

type termState struct {
	iteration int
	misses    int
	decayed   bool
}

// NewExpander creates a run-scoped expander for the given question.
func NewExpander(cfg domain.RunConfig) *Expander {
	qt := make(map[string]struct{})
	for _, t := range contentTerms(cfg.Question) {
		qt[t] = struct{}{}
	}
	return &Expander{
		max:           cfg.MaxNewTerms,
		questionTerms: qt,
		active:        make(map[string]*termState),
		domainSeen:    make(map[string]struct{}),
	}
}

// Active returns the non-decayed mined terms in the order they were added.
func (e *Expander) Active() []string {
	var out []string
	for _, term := range e.order {
		if st := e.active[term]; st != nil && !st.decayed {
			out = append(out, term)
		}
	}
	return out
}

// Domains returns the over-represented sender domains, in
// first-observation order.
func (e *Expander) Domains() []string { return e.domains }

// Mine extracts up to the configured number of new terms by contrasting
// the top-ranked chunks against the whole corpus. A term qualifies when
// it appears in at least two top chunks and its share of the top set is
// at least termContrast times its share of the corpus; stopwords,
// question terms and terms already active are excluded. Sender domains
// over-represented among selected messages are recorded as query
// aliases. Terms decayed since the previous round are drained into the
// record.
func (e *Expander) Mine(iteration int, top []domain.Chunk, corpus map[string]domain.Chunk, selectedSenders, allSenders []string) domain.TermExpansion {
	topDF := docFrequencies(top)

	corpusChunks := make([]domain.Chunk, 0, len(corpus))
	for _, chunk := range corpus {
		corpusChunks = append(corpusChunks, chunk)
	}
	corpusDF := docFrequencies(corpusChunks)

	type candidate struct {
		term     string
		contrast float64
		count    int
	}
	var candidates []candidate
	for term, count := range topDF {
		if count < 2 {
			continue
		}
		if _, q := e.questionTerms[term]; q {
			continue
		}
		if _, known := e.active[term]; known {
			continue
		}
		corpusCount := corpusDF[term]
		if corpusCount < count {
			// The top chunks are part of the corpus by contract; clamp
			// in case the caller passed partial statistics.
			corpusCount = count
		}
		corpusSize := len(corpusChunks)
		if corpusSize < len(top) {
			corpusSize = len(top)
		}
		topShare := float64(count) / float64(len(top))
		corpusShare := float64(corpusCount) / float64(corpusSize)
		contrast := topShare / corpusShare
		if contrast < termContrast {
			continue
		}
		candidates = append(candidates, candidate{term, contrast, count})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].contrast != candidates[j].contrast {
			return candidates[i].contrast > candidates[j].contrast
		}
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].term < candidates[j].term
	})

	var added []string
	for _, c := range candidates {
		if len(added) >= e.max {
			break
		}
		e.active[c.term] = &termState{iteration: iteration}
		e.order = append(e.order, c.term)
		added = append(added, c.term)
	}

	// Evidence: the strongest candidates that did not make the cut.
	var evidence []string
	for _, c := range candidates[len(added):] {
		if len(evidence) >= evidenceTerms {
			break
		}
		evidence = append(evidence, c.term)
	}

	e.mineDomains(selectedSenders, allSenders)

	decayed := e.pendingDecay
	e.pendingDecay = nil

	if len(added) > 0 || len(decayed) > 0 {
		logger.Debug("expansion round %d: +%d terms, -%d decayed", iteration, len(added), len(decayed))
	}

	return domain.TermExpansion{
		Iteration: iteration,
		Added:     added,
		Evidence:  evidence,
		Decayed:   decayed,
	}
}

// RecordMisses notes that queries built from the given terms surfaced no
// new messages. A term decays after two misses; newly decayed terms are
// reported in the next Mine round.
func (e *Expander) RecordMisses(terms []string) {
	for _, term := range terms {
		st := e.active[term]
		if st == nil || st.decayed {
			continue
		}
		st.misses++
		if st.misses >= decayMisses {
			st.decayed = true
			e.pendingDecay = append(e.pendingDecay, term)
			logger.Debug("expansion: term %q decayed after %d misses", term, st.misses)
		}
	}
}

// mineDomains records the sender domains whose share of the selected
// messages is at least domainContrast times their share of everything
// fetched so far. A domain that merely mirrors the corpus mix carries
// no signal about where the answer lives.
func (e *Expander) mineDomains(selected, all []string) {
	if len(selected) == 0 || len(all) == 0 {
		return
	}

	allCount := make(map[string]int)
	for _, sender := range all {
		if d := senderDomain(sender); d != "" {
			allCount[d]++
		}
	}

	selCount := make(map[string]int)
	var order []string
	for _, sender := range selected {
		d := senderDomain(sender)
		if d == "" {
			continue
		}
		if selCount[d] == 0 {
			order = append(order, d)
		}
		selCount[d]++
	}

	for _, d := range order {
		if _, dup := e.domainSeen[d]; dup {
			continue
		}
		if allCount[d] == 0 {
			continue
		}
		selShare := float64(selCount[d]) / float64(len(selected))
		allShare := float64(allCount[d]) / float64(len(all))
		if selShare < domainContrast*allShare {
			continue
		}
		e.domainSeen[d] = struct{}{}
		e.domains = append(e.domains, d)
	}
}

// docFrequencies counts, per term, the chunks containing it. Tokens
// shorter than three characters and stopwords are ignored.
func docFrequencies(chunks []domain.Chunk) map[string]int {
	df := make(map[string]int)
	for _, chunk := range chunks {
		seen := make(map[string]struct{})
		for _, tok := range tokenise(chunk.Text) {
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
			df[tok]++
		}
	}
	return df
}

func senderDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
