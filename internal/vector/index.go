// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex defines keyed vector storage and nearest-neighbour search.
type VectorIndex interface {
	// Upsert inserts or overwrites the vector stored under each id.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k ids accepted by accept (nil accepts all), nearest first.
	Search(ctx context.Context, query []float32, k int, accept func(id string) bool) ([]VectorResult, error)
	// Remove deletes the given ids; unknown ids are ignored.
	Remove(ctx context.Context, ids []string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single search hit.
type VectorResult struct {
	ID string
	// Distance is the cosine distance, 1 - cosine similarity.
	Distance float64
}
