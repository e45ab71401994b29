package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/noticeboard/internal/models"
)

// ErrEmptyFilter is returned when a delete would match every chunk.
var ErrEmptyFilter = errors.New("empty filter")

const (
	metaKeyDimensions = "dimensions"
	metaKeyModel      = "model"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		metadata TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		embedding BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_url ON chunks(source_url);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// UpsertChunks inserts or overwrites chunks in a transaction.
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsert(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChunks deletes chunks matching filter and upserts chunks atomically.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, filter models.Filter, chunks []*models.DocumentChunk) ([]string, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	removed, err := deleteMatching(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if err := upsert(ctx, tx, chunks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteChunks removes every chunk matching filter.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, filter models.Filter) ([]string, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	removed, err := deleteMatching(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func upsert(ctx context.Context, ex execer, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := ex.PrepareContext(ctx,
		`INSERT INTO chunks (id, content, chunk_index, metadata, source_url, embedding, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   chunk_index = excluded.chunk_index,
		   metadata = excluded.metadata,
		   source_url = excluded.source_url,
		   embedding = excluded.embedding,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Content, chunk.ChunkIndex, string(metadataJSON),
			chunk.Metadata.SourceURL(), float32SliceToBytes(chunk.Embedding), now,
		); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

func deleteMatching(ctx context.Context, ex execer, filter models.Filter) ([]string, error) {
	where, args := filterClause(filter)
	rows, err := ex.QueryContext(ctx, `SELECT id FROM chunks WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM chunks WHERE `+where, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

// filterClause builds a WHERE clause matching every filter pair. source_url uses its
// indexed column; other keys go through json_extract on the metadata document.
func filterClause(filter models.Filter) (string, []any) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		if k == models.MetaSourceURL {
			conds = append(conds, "source_url = ?")
			args = append(args, filter[k])
			continue
		}
		conds = append(conds, "json_extract(metadata, ?) = ?")
		args = append(args, `$."`+strings.ReplaceAll(k, `"`, `\"`)+`"`, filter[k])
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

// GetChunks returns chunks by id. Unknown ids are absent from the result.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) (map[string]*models.DocumentChunk, error) {
	out := make(map[string]*models.DocumentChunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, chunk_index, metadata FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var chunk models.DocumentChunk
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.ChunkIndex, &metadataJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		out[chunk.ID] = &chunk
	}
	return out, rows.Err()
}

// ListChunks returns every stored chunk including its embedding, ordered by id.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, chunk_index, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		var metadataJSON string
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.ChunkIndex, &metadataJSON, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", chunk.ID, err)
		}
		chunk.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Dimensions returns the recorded embedding dimension or 0.
func (s *SQLiteStorage) Dimensions(ctx context.Context) (int, error) {
	value, err := s.meta(ctx, metaKeyDimensions)
	if err != nil || value == "" {
		return 0, err
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid recorded dimensions %q: %w", value, err)
	}
	return dims, nil
}

// SetDimensions records the embedding dimension.
func (s *SQLiteStorage) SetDimensions(ctx context.Context, dims int) error {
	return s.setMeta(ctx, metaKeyDimensions, strconv.Itoa(dims))
}

// Model returns the recorded embedding model name or "".
func (s *SQLiteStorage) Model(ctx context.Context) (string, error) {
	return s.meta(ctx, metaKeyModel)
}

// SetModel records the embedding model name.
func (s *SQLiteStorage) SetModel(ctx context.Context, model string) error {
	return s.setMeta(ctx, metaKeyModel, model)
}

func (s *SQLiteStorage) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStorage) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
