package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/noticeboard/internal/models"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func entry(id, source string, emb ...float32) *models.DocumentChunk {
	return &models.DocumentChunk{
		ID:      id,
		Content: "text " + id,
		Metadata: models.Metadata{
			models.MetaTitle:     id,
			models.MetaSourceURL: source,
		},
		Embedding: emb,
	}
}

func TestSQLiteStore_QueryRanked(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, []*models.DocumentChunk{
		entry("far", "u/1", 0, 1),
		entry("near", "u/1", 1, 0.1),
		entry("exact", "u/2", 1, 0),
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Query(ctx, []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want all 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not ordered by distance: %+v", hits)
		}
	}
	if hits[0].ID != "exact" || hits[0].Document != "text exact" || hits[0].Metadata.SourceURL() != "u/2" {
		t.Errorf("top hit = %+v", hits[0])
	}

	hits, _ = s.Query(ctx, []float32{1, 0}, 1, nil)
	if len(hits) != 1 {
		t.Errorf("k=1 returned %d hits", len(hits))
	}
}

func TestSQLiteStore_QueryFilter(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*models.DocumentChunk{
		entry("a", "u/1", 1, 0),
		entry("b", "u/2", 1, 0),
	})
	hits, err := s.Query(ctx, []float32{1, 0}, 5, models.Filter{models.MetaSourceURL: "u/2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("filtered hits = %+v", hits)
	}
}

func TestSQLiteStore_DeleteTwice(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*models.DocumentChunk{
		entry("a_0", "u/a", 1, 0),
		entry("a_1", "u/a", 0, 1),
		entry("b_0", "u/b", 1, 1),
	})
	n, err := s.Delete(ctx, models.Filter{models.MetaSourceURL: "u/a"})
	if err != nil || n != 2 {
		t.Fatalf("first delete = %d, %v", n, err)
	}
	n, err = s.Delete(ctx, models.Filter{models.MetaSourceURL: "u/a"})
	if err != nil || n != 0 {
		t.Fatalf("second delete = %d, %v", n, err)
	}
	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
	hits, _ := s.Query(ctx, []float32{1, 0}, 10, models.Filter{models.MetaSourceURL: "u/a"})
	if len(hits) != 0 {
		t.Errorf("deleted entries still returned: %+v", hits)
	}
}

func TestSQLiteStore_DeleteEmptyFilter(t *testing.T) {
	s, _ := openTestStore(t)
	if _, err := s.Delete(context.Background(), models.Filter{}); !errors.Is(err, ErrEmptyFilter) {
		t.Errorf("error = %v, want ErrEmptyFilter", err)
	}
}

func TestSQLiteStore_Replace(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*models.DocumentChunk{
		entry("a_0_x", "u/a", 1, 0),
		entry("a_1_x", "u/a", 0, 1),
	})
	if err := s.Replace(ctx, models.Filter{models.MetaSourceURL: "u/a"},
		[]*models.DocumentChunk{entry("a_0_y", "u/a", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
	hits, _ := s.Query(ctx, []float32{1, 0}, 10, nil)
	if len(hits) != 1 || hits[0].ID != "a_0_y" {
		t.Errorf("hits after replace = %+v", hits)
	}
}

func TestSQLiteStore_DimensionGuard(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u/a", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []*models.DocumentChunk{entry("b", "u/b", 1, 0)}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Upsert error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := s.Query(ctx, []float32{1, 0}, 1, nil); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Query error = %v, want ErrDimensionMismatch", err)
	}
	s.Close()

	if _, err := Open(ctx, path, WithDimensions(2)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Open error = %v, want ErrDimensionMismatch", err)
	}
}

func TestSQLiteStore_ModelGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	s, err := Open(ctx, path, WithDimensions(2), WithModel("hash-v1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u/a", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := Open(ctx, path, WithDimensions(2), WithModel("onnx:all-MiniLM-L6-v2.onnx")); !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("Open with another model error = %v, want ErrModelMismatch", err)
	}
	s, err = Open(ctx, path, WithDimensions(2), WithModel("hash-v1"))
	if err != nil {
		t.Fatalf("Open with the same model: %v", err)
	}
	defer s.Close()
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSQLiteStore_ModelAdoptedByUnnamedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u/a", 1, 0)})
	s.Close()

	s, err = Open(ctx, path, WithModel("hash-v1"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := Open(ctx, path, WithModel("onnx:model.onnx")); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("Open error = %v, want ErrModelMismatch once a model is recorded", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u/a", 1, 0), entry("b", "u/b", 0, 1)})
	s.Close()

	s, err = Open(ctx, path, WithDimensions(2))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Dimensions() != 2 {
		t.Errorf("Dimensions = %d", s.Dimensions())
	}
	hits, err := s.Query(ctx, []float32{0, 1}, 1, nil)
	if err != nil || len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("hits after reopen = %+v, %v", hits, err)
	}
}

func TestSQLiteStore_nilLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	s, err := Open(ctx, path, WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u/a", 1, 0)})
	s.Close()
	s, err = Open(ctx, path, WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}

func TestSQLiteStore_EmptyStore(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	hits, err := s.Query(ctx, []float32{1, 0}, 5, nil)
	if err != nil || len(hits) != 0 {
		t.Errorf("Query on empty store = %v, %v", hits, err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestSQLiteStore_Closed(t *testing.T) {
	s, _ := openTestStore(t)
	s.Close()
	ctx := context.Background()
	if _, err := s.Count(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Count error = %v", err)
	}
	if _, err := s.Query(ctx, []float32{1}, 1, nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Query error = %v", err)
	}
	if err := s.Upsert(ctx, []*models.DocumentChunk{entry("a", "u", 1)}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Upsert error = %v", err)
	}
}
