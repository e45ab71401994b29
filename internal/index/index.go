// Package index is the chunk store behind retrieval: durable rows in SQLite with an
// in-memory vector index hydrated on open.
package index

import (
	"context"
	"errors"

	"github.com/hyperjump/noticeboard/internal/models"
)

var (
	// ErrUnavailable is returned when the store is closed or its database fails.
	ErrUnavailable = errors.New("index store unavailable")
	// ErrDimensionMismatch is returned for vectors whose length differs from the
	// dimension recorded by the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrModelMismatch is returned by Open when the store was written by a different
	// embedding model than the one it is opened with.
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrEmptyFilter is returned by Delete and Replace when the filter would match every entry.
	ErrEmptyFilter = errors.New("empty filter")
)

// Hit is one query result. Distance is the cosine distance to the query vector.
type Hit struct {
	ID       string
	Document string
	Metadata models.Metadata
	Distance float64
}

// Store persists chunk vectors, text and metadata.
type Store interface {
	// Upsert inserts or overwrites entries keyed by id.
	Upsert(ctx context.Context, entries []*models.DocumentChunk) error
	// Replace atomically deletes every entry matching filter, then upserts entries.
	Replace(ctx context.Context, filter models.Filter, entries []*models.DocumentChunk) error
	// Query returns the k entries nearest to vector among those matching filter,
	// ordered by distance then id. An empty filter matches everything.
	Query(ctx context.Context, vector []float32, k int, filter models.Filter) ([]Hit, error)
	// Delete removes every entry matching filter and returns how many were removed.
	Delete(ctx context.Context, filter models.Filter) (int, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	Close() error
}
