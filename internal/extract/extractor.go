// Package extract turns notice files (PDFs, scanned images, spreadsheets, plain text)
// into cleaned text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/pkg/utils"
)

// ErrNoText is returned when a file yields no usable text.
var ErrNoText = errors.New("no text extracted")

// ErrUnsupported is returned for file extensions the extractor does not handle.
var ErrUnsupported = errors.New("unsupported file type")

// ImageExtensions are recognised through OCR.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp"}

// Processed is the result of extracting one file.
type Processed struct {
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	WordCount int    `json:"word_count"`
}

// Extractor extracts plain text from notice files.
type Extractor struct {
	ocr    OCR
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR sets the OCR engine used for images. Without one, images are unsupported.
func WithOCR(o OCR) Option {
	return func(e *Extractor) { e.ocr = o }
}

// WithLogger sets a logger for extraction events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = utils.OrNop(l) }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether path has an extension Process can handle.
func (e *Extractor) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".xlsx", ".txt", ".md":
		return true
	}
	return e.ocr != nil && isImage(ext)
}

// Process extracts and cleans the text of the file at path. It returns ErrNoText when
// nothing usable remains and ErrUnsupported for unknown formats.
func (e *Extractor) Process(ctx context.Context, path string) (*Processed, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		text string
		err  error
	)
	switch {
	case isImage(ext):
		if e.ocr == nil {
			return nil, fmt.Errorf("%w: %s (no OCR engine)", ErrUnsupported, ext)
		}
		text, err = e.ocr.Recognize(ctx, path)
		text = CleanupText(text)
	case ext == ".pdf":
		text, err = e.Extract(path)
		text = CleanupText(text)
	case ext == ".xlsx" || ext == ".txt" || ext == ".md":
		text, err = e.Extract(path)
		text = strings.TrimSpace(text)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filepath.Base(path))
	}
	e.logger.Debug("text extracted", zap.String("path", path), zap.Int("chars", len(text)))
	return &Processed{
		Text:      text,
		Filename:  filepath.Base(path),
		Format:    ext,
		WordCount: utils.WordCount(text),
	}, nil
}

// Extract reads the file at path and returns its raw text content.
// Images are not handled here; see Process.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

func isImage(ext string) bool {
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
