// Package chunker splits message text into bounded, overlapping windows.
package chunker

import (
	"fmt"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Split cuts text into windows of at most maxSize runes.
// Windows start every maxSize-overlap runes, so neighbours share exactly overlap runes,
// and iteration stops at the first window that reaches the end of text.
// Text of at most maxSize runes, including the empty string, yields a single chunk.
func Split(text string, maxSize, overlap int) ([]string, error) {
	if err := validate(maxSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n <= maxSize {
		return []string{text}, nil
	}

	stride := maxSize - overlap
	chunks := make([]string, 0, (n-overlap+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+maxSize, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks, nil
}

func validate(maxSize, overlap int) error {
	if maxSize < 1 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, maxSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfiguration, overlap)
	}
	if overlap >= maxSize {
		return fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			domain.ErrConfiguration, overlap, maxSize)
	}
	return nil
}

// Chunker splits messages with fixed, validated parameters.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the window parameters once.
func New(maxSize, overlap int) (*Chunker, error) {
	if err := validate(maxSize, overlap); err != nil {
		return nil, err
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the window length in runes.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the number of runes neighbours share.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks splits the canonical text of msg into chunks with deterministic ids.
func (c *Chunker) Chunks(msg domain.Message) []domain.Chunk {
	// parameters were validated in New
	parts, _ := Split(msg.Text(), c.maxSize, c.overlap)

	src := msg.Source()
	out := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		out[i] = domain.Chunk{
			ID:      domain.ChunkID(src.Owner, src.MessageID, i),
			Source:  src,
			Ordinal: i,
			Text:    p,
		}
	}
	return out
}
