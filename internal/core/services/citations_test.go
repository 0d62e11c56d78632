package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

func citationFixture() ([]domain.Chunk, map[string]*domain.Message) {
	chunks := []domain.Chunk{
		{
			ID:        "G-001_0",
			MessageID: "G-001",
			Text: "We need to return our CoolSculpting Elite machine purchased in December 2024. " +
				"The unit has been experiencing consistent temperature regulation issues that make it unsafe. " +
				"Short sentence here.",
		},
		{
			ID:        "G-002_0",
			MessageID: "G-002",
			Text: "I have created RMA-2025-0847 for your return and the authorization expires in thirty days. " +
				"The machine must be returned in the original packaging or an equivalent protective crate.",
		},
	}
	messages := map[string]*domain.Message{
		"G-001": {
			SourceID: "G-001", ThreadID: "T-001", Selected: true,
			Date: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		},
		"G-002": {
			SourceID: "G-002", ThreadID: "T-001", Selected: true,
			Date: time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC),
		},
	}
	return chunks, messages
}

func TestCitationBuilder_AttachesQuotes(t *testing.T) {
	chunks, messages := citationFixture()
	b := NewCitationBuilder(10)

	bullets, err := b.Bullets(
		[]string{"The machine had temperature regulation issues"},
		chunks, messages,
		[]string{"temperature", "regulation"},
	)
	require.NoError(t, err)
	require.Len(t, bullets, 1)

	bullet := bullets[0]
	assert.Equal(t, "G-001", bullet.MessageID)
	assert.Equal(t, "T-001", bullet.ThreadID)
	assert.Contains(t, bullet.Quote, "temperature regulation issues")
	assert.Equal(t, "[G-001|T-001|2025-02-01]", bullet.Citation())
}

func TestCitationBuilder_QuoteMeetsMinimumLength(t *testing.T) {
	chunks, messages := citationFixture()
	b := NewCitationBuilder(10)

	bullets, err := b.Bullets(
		[]string{"A short sentence exists"},
		chunks, messages, nil,
	)
	require.NoError(t, err)
	// "Short sentence here." is under ten tokens; it must never be quoted.
	for _, bullet := range bullets {
		assert.NotEqual(t, "Short sentence here.", bullet.Quote)
	}
}

func TestCitationBuilder_DropsUnsupportedClaims(t *testing.T) {
	chunks, messages := citationFixture()
	b := NewCitationBuilder(10)

	bullets, err := b.Bullets(
		[]string{"completely unrelated zebra astronomy claim"},
		chunks, messages, nil,
	)
	require.NoError(t, err)
	assert.Empty(t, bullets)
}

func TestCitationBuilder_QuoteMustCarryAnActiveTerm(t *testing.T) {
	chunks, messages := citationFixture()
	b := NewCitationBuilder(10)

	// The RMA sentence overlaps the claim heavily, but none of the run's
	// active terms appear in it, so it is not admissible evidence.
	bullets, err := b.Bullets(
		[]string{"the return authorization expires in thirty days"},
		chunks, messages,
		[]string{"refund"},
	)
	require.NoError(t, err)
	assert.Empty(t, bullets)
}

func TestCitationBuilder_UnselectedMessageIsInvariantViolation(t *testing.T) {
	chunks, messages := citationFixture()
	messages["G-001"].Selected = false
	b := NewCitationBuilder(10)

	_, err := b.Bullets(
		[]string{"The machine had temperature regulation issues"},
		chunks, messages,
		[]string{"temperature"},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestThreadConfidence_Monotonic(t *testing.T) {
	assert.Greater(t, ThreadConfidence(0.9, 3), ThreadConfidence(0.5, 3))
	assert.Greater(t, ThreadConfidence(0.5, 5), ThreadConfidence(0.5, 1))
	assert.GreaterOrEqual(t, 1.0, ThreadConfidence(1.0, 100))
	assert.LessOrEqual(t, 0.0, ThreadConfidence(0, 0))
}
