// Package lifecycle keeps the search index consistent with the documents directory:
// files are extracted, tagged and indexed on arrival and de-indexed on removal.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/extract"
	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/internal/storage"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

// ErrInvalidFilename is returned for names that do not refer to a file directly inside
// the documents directory.
var ErrInvalidFilename = errors.New("invalid filename")

// Engine is the retrieval engine used to index and de-index documents.
type Engine interface {
	IndexDocument(ctx context.Context, text string, metadata models.Metadata) (int, error)
	DeleteDocument(ctx context.Context, filename string) (int, error)
	DocumentCount(ctx context.Context) (int, error)
	SourceURL(filename string) string
}

// TextExtractor turns a file into text.
type TextExtractor interface {
	Supported(path string) bool
	Process(ctx context.Context, path string) (*extract.Processed, error)
}

// Scraper downloads new notice files linked from a page into dir.
type Scraper interface {
	Scrape(ctx context.Context, pageURL, dir string) ([]string, error)
}

// Stats summarises the indexed corpus.
type Stats struct {
	TotalChunks int                   `json:"total_documents"`
	StorageUsed string                `json:"storage_used"`
	Activity    []storage.DayActivity `json:"activity_data"`
}

// Document is a file in the documents directory.
type Document struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	SourceURL string    `json:"source_url"`
}

// Manager moves files through extraction, tagging and indexing.
type Manager struct {
	dir       string
	engine    Engine
	extractor TextExtractor
	scraper   Scraper
	rules     []config.CategoryRule
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
	mu        sync.Mutex // serialises processing so one file is never indexed twice at once
}

// Option configures a Manager.
type Option func(*Manager)

// WithScraper enables Ingest.
func WithScraper(s Scraper) Option {
	return func(m *Manager) { m.scraper = s }
}

// WithCategoryRules replaces the default keyword rules.
func WithCategoryRules(rules []config.CategoryRule) Option {
	return func(m *Manager) { m.rules = rules }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = utils.OrNop(l) }
}

// WithMetrics records processing outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides the clock used for the fallback document date.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager for the documents directory dir.
func NewManager(dir string, engine Engine, extractor TextExtractor, opts ...Option) *Manager {
	m := &Manager{
		dir:       dir,
		engine:    engine,
		extractor: extractor,
		rules:     config.DefaultCategoryRules(),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the documents directory.
func (m *Manager) Dir() string { return m.dir }

// ProcessFile extracts, tags and indexes the file at path. It reports whether the file
// was indexed; failures are logged, never returned.
func (m *Manager) ProcessFile(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := filepath.Base(path)
	log := m.logger.With(zap.String("filename", name))
	log.Info("processing file")

	processed, err := m.extractor.Process(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNoText):
			m.metrics.DocumentProcessed("empty")
			log.Warn("no text extracted")
		case errors.Is(err, extract.ErrUnsupported):
			m.metrics.DocumentProcessed("unsupported")
			log.Debug("unsupported file", zap.Error(err))
		default:
			m.metrics.DocumentProcessed("failed")
			log.Error("extraction failed", zap.Error(err))
		}
		return false
	}

	metadata := models.Metadata{
		models.MetaTitle:     strings.TrimSuffix(name, filepath.Ext(name)),
		models.MetaSourceURL: m.engine.SourceURL(name),
		models.MetaDate:      DetectDate(processed.Text, m.now()),
		models.MetaCategory:  Categorize(processed.Text, m.rules),
	}
	n, err := m.engine.IndexDocument(ctx, processed.Text, metadata)
	if err != nil {
		m.metrics.DocumentProcessed("failed")
		log.Error("indexing failed", zap.Error(err))
		return false
	}
	if n == 0 {
		m.metrics.DocumentProcessed("empty")
		return false
	}
	m.metrics.DocumentProcessed("indexed")
	log.Info("file indexed",
		zap.Int("chunks", n),
		zap.String("category", metadata[models.MetaCategory]),
		zap.String("date", metadata[models.MetaDate]))
	return true
}

// RemoveFile deletes filename from the documents directory when present and purges its
// chunks from the index either way. It reports whether a file was deleted.
func (m *Manager) RemoveFile(ctx context.Context, filename string) (bool, error) {
	name, err := cleanName(filename)
	if err != nil {
		return false, err
	}
	deleted := false
	switch err := os.Remove(filepath.Join(m.dir, name)); {
	case err == nil:
		deleted = true
	case !os.IsNotExist(err):
		return false, fmt.Errorf("remove %s: %w", name, err)
	}
	if _, err := m.engine.DeleteDocument(ctx, name); err != nil {
		return deleted, err
	}
	m.logger.Info("file removed", zap.String("filename", name), zap.Bool("file_deleted", deleted))
	return deleted, nil
}

// Rescan processes every supported file in the documents directory and returns how
// many were indexed.
func (m *Manager) Rescan(ctx context.Context) int {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logger.Error("rescan failed", zap.String("dir", m.dir), zap.Error(err))
		return 0
	}
	count := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(m.dir, e.Name())
		if !e.Type().IsRegular() || !m.extractor.Supported(path) {
			continue
		}
		if m.ProcessFile(ctx, path) {
			count++
		}
	}
	m.logger.Info("rescan complete", zap.Int("indexed", count))
	return count
}

// Ingest scrapes pageURL into the documents directory and processes every new file.
// It returns how many were indexed.
func (m *Manager) Ingest(ctx context.Context, pageURL string) int {
	if m.scraper == nil {
		m.logger.Warn("ingest skipped: no scraper configured")
		return 0
	}
	files, err := m.scraper.Scrape(ctx, pageURL, m.dir)
	if err != nil {
		m.logger.Error("scrape failed", zap.String("url", pageURL), zap.Error(err))
	}
	count := 0
	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		if m.ProcessFile(ctx, filepath.Join(m.dir, name)) {
			count++
		}
	}
	m.logger.Info("ingest complete", zap.String("url", pageURL), zap.Int("new_files", len(files)), zap.Int("indexed", count))
	return count
}

// Save writes an uploaded file into the documents directory under its base name and
// processes it. Write failures are returned; indexed is false when the file was stored
// but could not be indexed.
func (m *Manager) Save(ctx context.Context, filename string, r io.Reader) (indexed bool, err error) {
	name, err := cleanName(filename)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return false, fmt.Errorf("create documents dir: %w", err)
	}
	dest := filepath.Join(m.dir, name)
	if err := writeAtomic(dest, r); err != nil {
		return false, fmt.Errorf("save %s: %w", name, err)
	}
	return m.ProcessFile(ctx, dest), nil
}

// Stats returns the chunk count, the size of the documents directory and the number
// of files modified on each weekday.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	count, err := m.engine.DocumentCount(ctx)
	if err != nil {
		return nil, err
	}
	size, err := storage.DiskUsageBytes(m.dir)
	if err != nil {
		return nil, fmt.Errorf("disk usage: %w", err)
	}
	activity, err := storage.WeekdayActivity(m.dir)
	if err != nil {
		return nil, fmt.Errorf("activity: %w", err)
	}
	return &Stats{TotalChunks: count, StorageUsed: storage.FormatMB(size), Activity: activity}, nil
}

// Documents lists the regular files in the documents directory, sorted by name.
func (m *Manager) Documents() ([]Document, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Document{}, nil
		}
		return nil, err
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, Document{
			Filename:  e.Name(),
			Size:      info.Size(),
			Modified:  info.ModTime(),
			SourceURL: m.engine.SourceURL(e.Name()),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

func cleanName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, `\`, "/")))
	if name == "" || name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return name, nil
}

func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
