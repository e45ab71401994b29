package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/noticeboard/internal/config"
)

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotPrompt = req.Contents[0].Parts[0].Text
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"25"},{"text":" years"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{BaseURL: srv.URL, Model: "gemini-1.5-flash", APIKey: "k3y"})
	out, err := g.Generate(context.Background(), "how old?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "25 years" {
		t.Errorf("out = %q", out)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" || gotKey != "k3y" || gotPrompt != "how old?" {
		t.Errorf("request path=%s key=%s prompt=%s", gotPath, gotKey, gotPrompt)
	}
}

func TestGemini_errorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := g.Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v", err)
	}
}

func TestGemini_noCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()
	g := NewGemini(GeminiConfig{BaseURL: srv.URL, APIKey: "k"})
	if _, err := g.Generate(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("error = %v", err)
	}
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("stream should be false")
		}
		w.Write([]byte(`{"response":"None","done":true}`))
	}))
	defer srv.Close()
	o := NewOllama(OllamaConfig{BaseURL: srv.URL})
	out, err := o.Generate(context.Background(), "x")
	if err != nil || out != "None" {
		t.Errorf("Generate = %q, %v", out, err)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("NOTICEBOARD_LLM_TEST_KEY", "")
	g, err := New(config.LLMConfig{Provider: "gemini", APIKeyEnv: "NOTICEBOARD_LLM_TEST_KEY"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("gemini without key: error = %v", err)
	}

	t.Setenv("NOTICEBOARD_LLM_TEST_KEY", "secret")
	g, _ = New(config.LLMConfig{Provider: "gemini", APIKeyEnv: "NOTICEBOARD_LLM_TEST_KEY", RequestsPerSecond: 2})
	if _, ok := g.(*Gemini); !ok {
		t.Errorf("New() = %T, want *Gemini", g)
	}

	g, _ = New(config.LLMConfig{Provider: "ollama"})
	if _, ok := g.(*Ollama); !ok {
		t.Errorf("New() = %T, want *Ollama", g)
	}

	if _, err := New(config.LLMConfig{Provider: "gpt-9"}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("unknown provider error = %v", err)
	}
}
