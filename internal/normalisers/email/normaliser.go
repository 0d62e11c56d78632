// Package email normalises raw message bodies into plain text suitable
// for chunking and ranking. Signature blocks, quoted reply chains and
// boilerplate disclaimers are stripped; malformed markup degrades to
// best-effort extraction and never raises.
package email

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern      = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern   = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	brPattern       = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</tr>`)
	multiNewline    = regexp.MustCompile(`\n\s*\n+`)
	multiSpace      = regexp.MustCompile(`[ \t]+`)
	signatureCutoff = regexp.MustCompile(`(?ms)^--\s*$.*`)
	closingPattern  = regexp.MustCompile(`(?is)\n(best regards|kind regards|sincerely|regards|thanks|thank you),?\s*\n(?:[^\n]*\n?){0,3}$`)
	disclaimerLine  = regexp.MustCompile(`(?i)(this e?-?mail (and any attachments )?(is|are) confidential|do not distribute|intended recipient|privileged and confidential)`)
)

// quoteIndicators mark the start of a quoted reply or forwarded chain.
// Everything from the first indicator onward is dropped.
var quoteIndicators = []string{
	"-----original message-----",
	"________________________________",
	"begin forwarded message",
}

// Normaliser cleans raw message bodies.
type Normaliser struct{}

// New creates a new email normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Normalise converts a raw body to clean plain text. Identical input
// always yields identical output; chunk boundaries downstream depend
// on this determinism.
func (n *Normaliser) Normalise(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	if looksLikeHTML(text) {
		text = stripHTML(text)
	}
	text = html.UnescapeString(text)

	text = removeQuotedContent(text)
	text = removeSignature(text)
	text = removeDisclaimers(text)

	// Whitespace normalisation
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// looksLikeHTML uses the same cheap heuristic the source format allows:
// bodies are either plain text or carry obvious markup.
func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>") ||
		strings.Contains(lower, "<br")
}

// stripHTML is a best-effort tag stripper. Unbalanced or malformed
// markup falls through as text rather than failing.
func stripHTML(s string) string {
	s = scriptPattern.ReplaceAllString(s, " ")
	s = brPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, " ")
	return s
}

func removeQuotedContent(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))

		stop := false
		for _, indicator := range quoteIndicators {
			if strings.Contains(lower, indicator) {
				stop = true
				break
			}
		}
		// "On <date>, <sender> wrote:" reply headers
		if strings.HasPrefix(lower, "on ") && strings.HasSuffix(lower, "wrote:") {
			stop = true
		}
		if stop {
			break
		}

		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}

func removeSignature(text string) string {
	text = signatureCutoff.ReplaceAllString(text, "")
	text = closingPattern.ReplaceAllString(text, "\n")
	return text
}

func removeDisclaimers(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if disclaimerLine.MatchString(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}
