package index

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/internal/storage"
	"github.com/hyperjump/noticeboard/internal/vector"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

// SQLiteStore implements Store over storage.SQLiteStorage and a vector.MemoryIndex.
// Every mutation holds the write lock for both the database transaction and the
// in-memory update, so queries never observe half-applied writes.
type SQLiteStore struct {
	mu       sync.RWMutex
	storage  storage.Storage
	vectors  *vector.MemoryIndex
	metadata map[string]models.Metadata
	dims     int
	model    string
	closed   bool
	logger   *zap.Logger
}

// Option configures a SQLiteStore.
type Option func(*openOptions)

type openOptions struct {
	dims   int
	model  string
	logger *zap.Logger
}

// WithDimensions makes Open fail with ErrDimensionMismatch when the database already
// records a different embedding dimension.
func WithDimensions(dims int) Option {
	return func(o *openOptions) { o.dims = dims }
}

// WithModel names the embedding model writing to the store. The name is recorded with
// the first write, and Open fails with ErrModelMismatch when the database already
// records a different one.
func WithModel(name string) Option {
	return func(o *openOptions) { o.model = name }
}

// WithLogger sets a logger for store events.
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) { o.logger = utils.OrNop(l) }
}

// Open opens (or creates) the store at dbPath and loads every stored vector into memory.
func Open(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	st, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s, err := newStore(ctx, st, o)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

func newStore(ctx context.Context, st storage.Storage, o openOptions) (*SQLiteStore, error) {
	s := &SQLiteStore{
		storage:  st,
		metadata: make(map[string]models.Metadata),
		model:    o.model,
		logger:   o.logger,
	}
	dims, err := st.Dimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read dimensions: %w", ErrUnavailable, err)
	}
	if dims > 0 && o.dims > 0 && dims != o.dims {
		return nil, fmt.Errorf("%w: store holds %d-dimensional vectors, embedder produces %d", ErrDimensionMismatch, dims, o.dims)
	}
	recorded, err := st.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read model: %w", ErrUnavailable, err)
	}
	if recorded != "" && o.model != "" && recorded != o.model {
		return nil, fmt.Errorf("%w: store was written by %q, embedder is %q", ErrModelMismatch, recorded, o.model)
	}
	if dims == 0 {
		return s, nil
	}
	if recorded == "" && o.model != "" {
		s.logger.Warn("store has no recorded embedding model, adopting current one", zap.String("model", o.model))
		if err := st.SetModel(ctx, o.model); err != nil {
			return nil, fmt.Errorf("%w: record model: %w", ErrUnavailable, err)
		}
	}
	if err := s.initVectors(dims); err != nil {
		return nil, err
	}
	chunks, err := st.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunks: %w", ErrUnavailable, err)
	}
	if err := s.applyUpsert(ctx, chunks); err != nil {
		return nil, err
	}
	s.logger.Info("index store loaded", zap.Int("chunks", len(chunks)), zap.Int("dimensions", dims))
	return s, nil
}

func (s *SQLiteStore) initVectors(dims int) error {
	idx, err := vector.NewMemoryIndex(dims)
	if err != nil {
		return err
	}
	s.vectors = idx
	s.dims = dims
	return nil
}

// Dimensions returns the recorded embedding dimension, 0 for a store that has never
// been written.
func (s *SQLiteStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// checkDims validates entry vectors and records the dimension on first write.
// Caller holds the write lock.
func (s *SQLiteStore) checkDims(ctx context.Context, entries []*models.DocumentChunk) error {
	if len(entries) == 0 {
		return nil
	}
	want := s.dims
	if want == 0 {
		want = len(entries[0].Embedding)
		if want == 0 {
			return fmt.Errorf("%w: empty embedding for %s", ErrDimensionMismatch, entries[0].ID)
		}
	}
	for _, e := range entries {
		if len(e.Embedding) != want {
			return fmt.Errorf("%w: entry %s has %d, store expects %d", ErrDimensionMismatch, e.ID, len(e.Embedding), want)
		}
	}
	if s.dims == 0 {
		if err := s.storage.SetDimensions(ctx, want); err != nil {
			return fmt.Errorf("%w: record dimensions: %w", ErrUnavailable, err)
		}
		if s.model != "" {
			if err := s.storage.SetModel(ctx, s.model); err != nil {
				return fmt.Errorf("%w: record model: %w", ErrUnavailable, err)
			}
		}
		return s.initVectors(want)
	}
	return nil
}

// applyUpsert updates the in-memory index. Caller holds the write lock.
func (s *SQLiteStore) applyUpsert(ctx context.Context, entries []*models.DocumentChunk) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		vecs[i] = e.Embedding
		s.metadata[e.ID] = e.Metadata.Clone()
	}
	return s.vectors.Upsert(ctx, ids, vecs)
}

// applyRemove drops ids from the in-memory index. Caller holds the write lock.
func (s *SQLiteStore) applyRemove(ctx context.Context, ids []string) {
	if len(ids) == 0 || s.vectors == nil {
		return
	}
	_ = s.vectors.Remove(ctx, ids)
	for _, id := range ids {
		delete(s.metadata, id)
	}
}

// Upsert inserts or overwrites entries keyed by id.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []*models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.checkDims(ctx, entries); err != nil {
		return err
	}
	if err := s.storage.UpsertChunks(ctx, entries); err != nil {
		return fmt.Errorf("%w: upsert: %w", ErrUnavailable, err)
	}
	return s.applyUpsert(ctx, entries)
}

// Replace deletes entries matching filter and upserts entries in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, filter models.Filter, entries []*models.DocumentChunk) error {
	if len(filter) == 0 {
		return ErrEmptyFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}
	if err := s.checkDims(ctx, entries); err != nil {
		return err
	}
	removed, err := s.storage.ReplaceChunks(ctx, filter, entries)
	if err != nil {
		return fmt.Errorf("%w: replace: %w", ErrUnavailable, err)
	}
	s.applyRemove(ctx, removed)
	if err := s.applyUpsert(ctx, entries); err != nil {
		return err
	}
	s.logger.Debug("index entries replaced",
		zap.Int("removed", len(removed)), zap.Int("added", len(entries)))
	return nil
}

// Query returns the k nearest entries matching filter.
func (s *SQLiteStore) Query(ctx context.Context, vec []float32, k int, filter models.Filter) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}
	if k <= 0 || s.vectors == nil {
		return nil, nil
	}
	if len(vec) != s.dims {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(vec), s.dims)
	}
	var accept func(string) bool
	if len(filter) > 0 {
		accept = func(id string) bool { return s.metadata[id].Matches(filter) }
	}
	results, err := s.vectors.Search(ctx, vec, k, accept)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	rows, err := s.storage.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunks: %w", ErrUnavailable, err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		row, ok := rows[r.ID]
		if !ok {
			s.logger.Warn("vector without stored chunk", zap.String("id", r.ID))
			continue
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Document: row.Content,
			Metadata: row.Metadata,
			Distance: r.Distance,
		})
	}
	return hits, nil
}

// Delete removes entries matching filter. Matching nothing is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, filter models.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrUnavailable
	}
	removed, err := s.storage.DeleteChunks(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %w", ErrUnavailable, err)
	}
	s.applyRemove(ctx, removed)
	return len(removed), nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrUnavailable
	}
	n, err := s.storage.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrUnavailable, err)
	}
	return int(n), nil
}

// Close closes the database. Further calls return ErrUnavailable.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.storage.Close()
}
