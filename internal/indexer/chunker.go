// Package indexer splits document text into overlapping chunks for embedding.
package indexer

import (
	"fmt"

	"github.com/hyperjump/noticeboard/internal/config"
)

// Chunker splits text into overlapping windows measured in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// It returns config.ErrInvalid unless 0 <= chunkOverlap < chunkSize.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrInvalid, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", config.ErrInvalid, chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text into windows of at most chunkSize runes whose starts advance by
// chunkSize-chunkOverlap. Empty text yields no chunks. Text of length L yields
// ceil(L / (chunkSize-chunkOverlap)) chunks; the trailing ones may be shorter than
// the overlap itself.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
