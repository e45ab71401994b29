// Package storage persists notice chunks, their embeddings and metadata.
package storage

import (
	"context"

	"github.com/hyperjump/noticeboard/internal/models"
)

// Storage defines chunk persistence operations. Filters are exact-match predicates
// over chunk metadata; an empty filter is rejected by the deleting operations.
type Storage interface {
	// UpsertChunks inserts or overwrites chunks keyed by id.
	UpsertChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	// ReplaceChunks deletes every chunk matching filter and upserts chunks in one
	// transaction. It returns the ids of the deleted chunks.
	ReplaceChunks(ctx context.Context, filter models.Filter, chunks []*models.DocumentChunk) ([]string, error)
	// DeleteChunks deletes every chunk matching filter and returns their ids.
	DeleteChunks(ctx context.Context, filter models.Filter) ([]string, error)
	// GetChunks returns the stored chunks for ids, keyed by id, without embeddings.
	GetChunks(ctx context.Context, ids []string) (map[string]*models.DocumentChunk, error)
	// ListChunks returns every chunk with its embedding.
	ListChunks(ctx context.Context) ([]*models.DocumentChunk, error)
	CountChunks(ctx context.Context) (int64, error)

	// Dimensions returns the recorded embedding dimension, 0 if none was recorded yet.
	Dimensions(ctx context.Context) (int, error)
	SetDimensions(ctx context.Context, dims int) error
	// Model returns the recorded embedding model name, "" if none was recorded yet.
	Model(ctx context.Context) (string, error)
	SetModel(ctx context.Context, model string) error

	Close() error
}
