// Package chunker splits normalised message bodies into overlapping
// token windows. Chunking is deterministic: identical input and
// configuration always yield identical chunk boundaries and IDs.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 800

// DefaultOverlap is the default number of overlapping tokens (~15%).
const DefaultOverlap = 120

// Processor splits message bodies into fixed-size token chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Chunk splits the message body into overlapping token windows. Chunk
// IDs are "<message id>_<position>" so reruns over the same corpus
// produce identical identifiers.
func (p *Processor) Chunk(msg domain.Message) []domain.Chunk {
	body := msg.Body
	if body == "" {
		body = msg.RawBody
	}
	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return nil
	}

	if len(tokens) <= p.chunkSize {
		return []domain.Chunk{{
			ID:         chunkID(msg.SourceID, 0),
			MessageID:  msg.SourceID,
			Position:   0,
			Text:       strings.Join(tokens, " "),
			TokenCount: len(tokens),
		}}
	}

	step := p.chunkSize - p.overlap
	estimated := len(tokens)/step + 1
	chunks := make([]domain.Chunk, 0, estimated)

	position := 0
	for start := 0; start < len(tokens); start += step {
		end := start + p.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(msg.SourceID, position),
			MessageID:  msg.SourceID,
			Position:   position,
			Text:       strings.Join(window, " "),
			TokenCount: len(window),
		})
		position++

		if end == len(tokens) {
			break
		}
	}

	return chunks
}

func chunkID(messageID string, position int) string {
	return fmt.Sprintf("%s_%d", messageID, position)
}
