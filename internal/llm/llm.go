// Package llm provides the text generation capability: given a prompt, return text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperjump/noticeboard/internal/config"
)

// ErrNotConfigured is returned by generators that have no provider or credentials.
var ErrNotConfigured = errors.New("language model not configured")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns the generator for cfg.Provider. A missing provider or API key yields a
// Disabled generator so callers can report the capability as unavailable.
func New(cfg config.LLMConfig) (Generator, error) {
	limiter := newLimiter(cfg.RequestsPerSecond)
	switch cfg.Provider {
	case "", "none":
		return Disabled{}, nil
	case "gemini":
		key := cfg.APIKey()
		if key == "" {
			return Disabled{}, nil
		}
		return NewGemini(GeminiConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  key,
			Timeout: cfg.Timeout,
			Limiter: limiter,
		}), nil
	case "ollama":
		return NewOllama(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Limiter: limiter,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrInvalid, cfg.Provider)
	}
}

// Disabled always fails with ErrNotConfigured.
type Disabled struct{}

// Generate returns ErrNotConfigured.
func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

const defaultTimeout = 30 * time.Second
