// Package search provides the retrieval engine: chunk, embed and store documents,
// then rank stored chunks by cosine similarity to a query.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/embedding"
	"github.com/hyperjump/noticeboard/internal/index"
	"github.com/hyperjump/noticeboard/internal/indexer"
	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

// ErrMissingTitle is returned when indexing metadata has no title.
var ErrMissingTitle = errors.New("metadata title is required")

// Engine composes the chunker, embedder and index store.
type Engine struct {
	store    index.Store
	embedder embedding.Embedder
	chunker  *indexer.Chunker
	baseURL  string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for indexing and search events.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// WithMetrics records indexing and search metrics.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a retrieval engine. baseURL prefixes every source locator.
func NewEngine(store index.Store, embedder embedding.Embedder, chunker *indexer.Chunker, baseURL string, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SourceURL returns the canonical locator of a file in the documents directory.
// The same function builds locators at index and delete time.
func (e *Engine) SourceURL(filename string) string {
	return e.baseURL + "/files/" + url.PathEscape(filename)
}

// IndexDocument chunks text, embeds every chunk in one batch and stores them with a
// copy of metadata. When metadata carries a source_url, entries previously stored
// under that locator are replaced atomically. Returns the number of chunks stored.
func (e *Engine) IndexDocument(ctx context.Context, text string, metadata models.Metadata) (int, error) {
	title := metadata.Title()
	if title == "" {
		return 0, ErrMissingTitle
	}
	texts := e.chunker.Chunk(text)
	if len(texts) == 0 {
		return 0, nil
	}
	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
	}

	chunks := make([]*models.DocumentChunk, len(texts))
	for i, t := range texts {
		chunks[i] = &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d_%s", title, i, uuid.New().String()[:8]),
			Content:    t,
			ChunkIndex: i,
			Metadata:   metadata.Clone(),
			Embedding:  embeddings[i],
		}
	}

	if src := metadata.SourceURL(); src != "" {
		err = e.store.Replace(ctx, models.Filter{models.MetaSourceURL: src}, chunks)
	} else {
		err = e.store.Upsert(ctx, chunks)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	e.metrics.ChunksIndexed(len(chunks))
	e.logger.Debug("document indexed", zap.String("title", title), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Search embeds query and returns up to n chunks matching filters, most relevant first.
// Relevance is 1 - cosine distance.
func (e *Engine) Search(ctx context.Context, query string, n int, filters models.Filter) ([]models.QueryResult, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveSearch(time.Since(start)) }()

	if n <= 0 {
		return nil, nil
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := e.store.Query(ctx, vec, n, filters)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	results := make([]models.QueryResult, len(hits))
	for i, h := range hits {
		results[i] = models.QueryResult{
			ID:             h.ID,
			Document:       h.Document,
			Metadata:       h.Metadata,
			RelevanceScore: 1 - h.Distance,
		}
	}
	return results, nil
}

// DeleteDocument removes every chunk of the file with the given name and returns how
// many were removed. Deleting an unknown file removes nothing and is not an error.
func (e *Engine) DeleteDocument(ctx context.Context, filename string) (int, error) {
	n, err := e.store.Delete(ctx, models.Filter{models.MetaSourceURL: e.SourceURL(filename)})
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	e.metrics.ChunksDeleted(n)
	e.logger.Debug("document deleted", zap.String("filename", filename), zap.Int("chunks", n))
	return n, nil
}

// DocumentCount returns the number of stored chunks.
func (e *Engine) DocumentCount(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}
