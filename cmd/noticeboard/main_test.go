package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/answer"
	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/extract"
	"github.com/hyperjump/noticeboard/internal/models"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"exam schedule", "-limit", "5"},
			expected: []string{"-limit", "5", "exam schedule"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "exam schedule"},
			expected: []string{"-limit", "5", "exam schedule"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"exam schedule"},
			expected: []string{"exam schedule"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"fee", "deadline", "-filter", "category=Fees"},
			expected: []string{"-filter", "category=Fees", "fee", "deadline"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"holiday"}, "holiday"},
		{"multiple words", []string{"exam", "schedule"}, "exam schedule"},
		{"single quoted phrase", []string{"exam schedule"}, "exam schedule"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestFilterFlag(t *testing.T) {
	f := filterFlag{}
	if err := f.Set("category = Exams"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("title=notice_1"); err != nil {
		t.Fatal(err)
	}
	if f["category"] != "Exams" || f["title"] != "notice_1" {
		t.Errorf("unexpected filters: %v", f)
	}
	for _, bad := range []string{"category", "=Exams"} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Scrape.Schedule != "@hourly" {
		t.Errorf("schedule = %q, want @hourly", cfg.Scrape.Schedule)
	}
	if !filepath.IsAbs(cfg.Storage.DocumentsDir) {
		t.Errorf("documents dir should be absolute, got %s", cfg.Storage.DocumentsDir)
	}
}

func TestLoadConfig_readsDotEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
llm:
  api_key_env: "NOTICEBOARD_TEST_KEY"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NOTICEBOARD_TEST_KEY=secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("NOTICEBOARD_TEST_KEY") })

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LLM.APIKey(); got != "secret" {
		t.Errorf("APIKey() = %q, want secret", got)
	}
}

func TestIndexTargets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.pdf", "c.docx", "d.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0755); err != nil {
		t.Fatal(err)
	}
	ex := extract.NewExtractor()

	got, err := indexTargets(dir, ex)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf"), filepath.Join(dir, "d.md")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("indexTargets(dir) = %v, want %v", got, want)
	}

	if _, err := indexTargets(filepath.Join(dir, "c.docx"), ex); err != extract.ErrUnsupported {
		t.Errorf("unsupported file error = %v, want ErrUnsupported", err)
	}
	if _, err := indexTargets(filepath.Join(dir, "missing.txt"), ex); err == nil {
		t.Error("missing file should fail")
	}
}

func TestSearchViaHTTP(t *testing.T) {
	age := "26"
	var got models.SearchQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode([]models.SearchResult{{ID: "n_0_abcd1234", Title: "n", ExtractedAnswer: &age}})
	}))
	defer srv.Close()

	results, err := searchViaHTTP(srv.URL, &models.SearchQuery{Query: "age", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "age" || got.Limit != 3 {
		t.Errorf("server received %+v", got)
	}
	if len(results) != 1 || results[0].ExtractedAnswer == nil || *results[0].ExtractedAnswer != "26" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearchViaHTTP_errorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"index unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := searchViaHTTP(srv.URL, &models.SearchQuery{Query: "x"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want 503 status", err)
	}
}

func TestInitializeComponents(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Default(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Embedding.ModelPath = ""
	cfg.Embedding.Dimensions = 64
	cfg.LLM.APIKeyEnv = "NOTICEBOARD_UNSET_KEY"
	cfg.OCR.Binary = filepath.Join(dir, "no-tesseract")

	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	notice := filepath.Join(dir, "fees.txt")
	if err := os.WriteFile(notice, []byte("Semester fee payment last date is 15/08/2025 for all students."), 0600); err != nil {
		t.Fatal(err)
	}
	ok, err := saveFile(ctx, c.Manager, notice)
	if err != nil || !ok {
		t.Fatalf("saveFile() = %v, %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.DocumentsDir, "fees.txt")); err != nil {
		t.Errorf("file not copied into documents dir: %v", err)
	}
	hits, err := c.Engine.Search(ctx, "fee payment last date", 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].Metadata[models.MetaCategory] != "Fees" {
		t.Errorf("unexpected hits: %+v", hits)
	}
	if r := c.Answers.Extract(ctx, hits[0].Document, "when is the last date"); r.Status != answer.StatusUnavailable {
		t.Errorf("answer status = %q, want unavailable without an API key", r.Status)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}
