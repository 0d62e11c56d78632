package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBullet_Citation(t *testing.T) {
	b := Bullet{
		MessageID: "G-001",
		ThreadID:  "T-001",
		Date:      time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "[G-001|T-001|2025-02-01]", b.Citation())
}

func TestBullet_CitedQuote(t *testing.T) {
	b := Bullet{
		Quote:     "The unit has been experiencing consistent temperature regulation issues.",
		MessageID: "G-001",
		ThreadID:  "T-001",
		Date:      time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t,
		"The unit has been experiencing consistent temperature regulation issues. [G-001|T-001|2025-02-01]",
		b.CitedQuote())
}

func TestParseCitation_RoundTrip(t *testing.T) {
	b := Bullet{
		MessageID: "G-006",
		ThreadID:  "T-004",
		Date:      time.Date(2025, 2, 22, 0, 0, 0, 0, time.UTC),
	}

	messageID, threadID, date, err := ParseCitation(b.Citation())
	require.NoError(t, err)
	assert.Equal(t, "G-006", messageID)
	assert.Equal(t, "T-004", threadID)
	assert.Equal(t, b.Date, date)
}

func TestParseCitation_Malformed(t *testing.T) {
	for _, input := range []string{"", "[a|b]", "[a|b|c|d]", "[a|b|not-a-date]"} {
		_, _, _, err := ParseCitation(input)
		require.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}
