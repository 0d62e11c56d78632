package domain

import (
	"fmt"
	"strings"
	"time"
)

// Bullet is one cited claim. Its citation tuple must always resolve to a
// message marked selected in the run that produced it.
type Bullet struct {
	// Claim is the condensed statement backed by the quote.
	Claim string

	// Quote is the verbatim span extracted from a selected chunk.
	Quote string

	// MessageID, ThreadID and Date form the citation tuple.
	MessageID string
	ThreadID  string
	Date      time.Time
}

// Citation renders the citation tuple in the boundary format
// "[source_id|thread_id|ISO-date]". The ordering and delimiter are a
// compatibility contract for downstream consumers.
func (b Bullet) Citation() string {
	return fmt.Sprintf("[%s|%s|%s]", b.MessageID, b.ThreadID, b.Date.Format("2006-01-02"))
}

// CitedQuote returns the quote with the citation appended inline.
func (b Bullet) CitedQuote() string {
	return b.Quote + " " + b.Citation()
}

// ParseCitation parses a citation string back into its tuple parts.
func ParseCitation(s string) (messageID, threadID string, date time.Time, err error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.Split(trimmed, "|")
	if len(parts) != 3 {
		return "", "", time.Time{}, fmt.Errorf("%w: malformed citation %q", ErrInvalidInput, s)
	}
	date, err = time.Parse("2006-01-02", parts[2])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: citation date %q", ErrInvalidInput, parts[2])
	}
	return parts[0], parts[1], date, nil
}
