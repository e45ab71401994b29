package embedding

import (
	"context"

	"github.com/hyperjump/noticeboard/pkg/utils"
)

// HashModelName identifies the hashing scheme. Change it whenever bucket assignment
// changes so stores written with the old scheme are rejected on open.
const HashModelName = "hash-v1"

// HashEmbedder is a feature-hashing bag-of-words embedder. Each lower-cased word and
// each adjacent word pair adds weight to one bucket; the vector is then L2 normalised.
// All components are non-negative, so cosine similarity between two vectors is in [0, 1].
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed embedding of text. Text without words yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	words := SplitWords(text)
	for i, w := range words {
		emb[e.bucket(w)] += 1
		if i > 0 {
			emb[e.bucket(words[i-1]+" "+w)] += 0.5
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *HashEmbedder) bucket(s string) uint64 {
	return HashString(s) % uint64(e.dimensions)
}

// EmbedBatch embeds every text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns HashModelName.
func (e *HashEmbedder) Model() string {
	return HashModelName
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
