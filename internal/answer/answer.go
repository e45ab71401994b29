// Package answer distils a single value (such as an age) out of retrieved notice text.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/llm"
	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

// Status is the outcome of one extraction.
type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	// StatusUnavailable means the language model failed or is not configured.
	StatusUnavailable Status = "unavailable"
)

// Source names the method that produced an answer.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceLLM       Source = "llm"
)

// Result is an extracted answer. Value is set only when Status is StatusFound.
type Result struct {
	Value  string `json:"value,omitempty"`
	Status Status `json:"status"`
	Source Source `json:"source,omitempty"`
}

// Ptr returns the value for API responses, nil unless found.
func (r Result) Ptr() *string {
	if r.Status != StatusFound {
		return nil
	}
	v := r.Value
	return &v
}

var (
	agePattern  = regexp.MustCompile(`(?i)\b(age|ages|aged|how old)\b`)
	yearPattern = regexp.MustCompile(`(?:19|20)\d{2}`)
)

const noneSentinel = "None"

// Extractor computes answers with a deterministic heuristic first and falls back to
// the language model.
type Extractor struct {
	gen     llm.Generator
	cfg     config.AnswerConfig
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = utils.OrNop(l) }
}

// WithMetrics records extraction outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithClock overrides the current time used for age arithmetic and prompts.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an extractor. A nil generator behaves as llm.Disabled.
func NewExtractor(gen llm.Generator, cfg config.AnswerConfig, opts ...Option) *Extractor {
	if gen == nil {
		gen = llm.Disabled{}
	}
	e := &Extractor{gen: gen, cfg: cfg, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsAgeQuery reports whether query asks for an age.
func IsAgeQuery(query string) bool {
	return agePattern.MatchString(query)
}

// AgeFromText returns the largest currentYear-y over four-digit years y in text with
// minBirthYear < y < currentYear-minAge. Years inside e-mail addresses count.
func AgeFromText(text string, currentYear, minBirthYear, minAge int) (int, bool) {
	best, found := 0, false
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if y <= minBirthYear || y >= currentYear-minAge {
			continue
		}
		if age := currentYear - y; !found || age > best {
			best, found = age, true
		}
	}
	return best, found
}

// Extract returns the answer to query found in text. It never fails; capability
// errors are reported as StatusUnavailable.
func (e *Extractor) Extract(ctx context.Context, text, query string) Result {
	r := e.extract(ctx, text, query)
	e.metrics.AnswerExtracted(string(r.Source), string(r.Status))
	return r
}

func (e *Extractor) extract(ctx context.Context, text, query string) Result {
	year := e.now().Year()
	if IsAgeQuery(query) {
		if age, ok := AgeFromText(text, year, e.cfg.MinBirthYear, e.cfg.MinAge); ok {
			return Result{Value: strconv.Itoa(age), Status: StatusFound, Source: SourceHeuristic}
		}
	}

	out, err := e.gen.Generate(ctx, e.prompt(text, query, year))
	if err != nil {
		e.logger.Debug("answer extraction unavailable", zap.Error(err))
		return Result{Status: StatusUnavailable, Source: SourceLLM}
	}
	value := CleanAnswer(out)
	if value == "" || strings.Contains(value, noneSentinel) || len([]rune(value)) > e.cfg.MaxAnswerLen {
		return Result{Status: StatusNotFound, Source: SourceLLM}
	}
	return Result{Value: value, Status: StatusFound, Source: SourceLLM}
}

func (e *Extractor) prompt(text, query string, year int) string {
	return fmt.Sprintf(`Extract the exact answer.
Query: "%s"
Context: "%s"
Current Year: %d

Rules:
- If the query asks for an age and you see a birth year or probable birth year (e.g. in an email), calculate the age.
- Return ONLY the result (e.g. "21"). No text.
- If not found, return "%s".`, query, utils.Prefix(text, e.cfg.ContextChars), year, noneSentinel)
}

// CleanAnswer trims surrounding whitespace, quotes and periods from a model response.
func CleanAnswer(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t\r\n\"'.`")
}

// ExtractAll extracts answers for the first TopK results using at most Workers
// concurrent extractions. The returned slice is aligned with results and has
// min(TopK, len(results)) entries.
func (e *Extractor) ExtractAll(ctx context.Context, results []models.QueryResult, query string) []Result {
	n := e.cfg.TopK
	if n > len(results) {
		n = len(results)
	}
	if n <= 0 {
		return nil
	}
	out, _ := utils.MapOrdered(ctx, results[:n], e.cfg.Workers, func(ctx context.Context, r models.QueryResult) (Result, error) {
		return e.Extract(ctx, r.Document, query), nil
	})
	return out
}
