package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default Ollama settings.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
)

// OllamaConfig configures an Ollama client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Limiter *rate.Limiter
}

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
	limiter *rate.Limiter
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllama creates an Ollama client. A Gemini base URL left in the config is ignored.
func NewOllama(cfg OllamaConfig) *Ollama {
	base := cfg.BaseURL
	if base == "" || base == DefaultGeminiBaseURL {
		base = DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" || model == DefaultGeminiModel {
		model = DefaultOllamaModel
	}
	return &Ollama{
		client:  &http.Client{Timeout: orDefault(cfg.Timeout, defaultTimeout)},
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		limiter: cfg.Limiter,
	}
}

// Generate returns the non-streamed completion for prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}
