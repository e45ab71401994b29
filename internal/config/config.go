// Package config provides configuration loading and structs for the notice board server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the configuration cannot be used (e.g. chunk overlap >= chunk size).
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Search     SearchConfig    `yaml:"search"`
	Answer     AnswerConfig    `yaml:"answer"`
	LLM        LLMConfig       `yaml:"llm"`
	Scrape     ScrapeConfig    `yaml:"scrape"`
	Watch      WatchConfig     `yaml:"watch"`
	OCR        OCRConfig       `yaml:"ocr"`
	Categories []CategoryRule  `yaml:"categories"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BaseURL prefixes every document source locator: {base_url}/files/{filename}.
	BaseURL     string   `yaml:"base_url"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig holds paths for the vector store database and the documents folder.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	DocumentsDir string `yaml:"documents_dir"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds search and chunking settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	ChunkSize    int `yaml:"chunk_size"`
	// ChunkOverlap is read through Overlap so an explicit 0 differs from unset.
	ChunkOverlap *int `yaml:"chunk_overlap,omitempty"`
	// ChatContextResults is how many chunks feed the chat prompt.
	ChatContextResults int `yaml:"chat_context_results"`
}

// Overlap returns ChunkOverlap, or when unset 50 capped at a tenth of ChunkSize.
func (s SearchConfig) Overlap() int {
	if s.ChunkOverlap != nil {
		return *s.ChunkOverlap
	}
	return min(defaultChunkOverlap, s.ChunkSize/10)
}

// AnswerConfig controls per-result answer extraction.
type AnswerConfig struct {
	TopK         int `yaml:"top_k"`
	Workers      int `yaml:"workers"`
	ContextChars int `yaml:"context_chars"`
	MaxAnswerLen int `yaml:"max_answer_len"`
	MinBirthYear int `yaml:"min_birth_year"`
	MinAge       int `yaml:"min_age"`
}

// LLMConfig configures the text generation capability.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv         string        `yaml:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// APIKey returns the API key from the configured environment variable.
func (l *LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// ScrapeConfig configures the notice board scraper and its schedule.
type ScrapeConfig struct {
	TargetURL string `yaml:"target_url"`
	// Schedule is a cron expression (or @hourly, @daily). Empty disables scheduled scraping.
	Schedule          string        `yaml:"schedule"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Extensions        []string      `yaml:"extensions"`
}

// WatchConfig holds documents directory watch settings.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
}

// OCRConfig configures the tesseract command used for scanned notices.
type OCRConfig struct {
	Binary   string `yaml:"binary"`
	Language string `yaml:"language"`
	// Preprocess upscales and binarises images before recognition; default true.
	Preprocess *bool `yaml:"preprocess,omitempty"`
}

// PreprocessOrDefault returns Preprocess, or true when unset.
func (o OCRConfig) PreprocessOrDefault() bool {
	if o.Preprocess == nil {
		return true
	}
	return *o.Preprocess
}

// CategoryRule assigns Category when any keyword occurs in the lower-cased text.
// Rules are evaluated in order; the first match wins.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed, or ErrInvalid if validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default configuration with relative paths resolved against dir.
// It is used when no config file exists.
func Default(dir string) (*Config, error) {
	var cfg Config
	if err := finish(&cfg, dir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DocumentsDir = expandPath(cfg.Storage.DocumentsDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	return cfg.Validate()
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Search.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.Search.ChunkSize)
	}
	if overlap := c.Search.Overlap(); overlap < 0 || overlap >= c.Search.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be in [0, chunk_size=%d)",
			ErrInvalid, overlap, c.Search.ChunkSize)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalid)
	}
	if c.Answer.Workers <= 0 {
		return fmt.Errorf("%w: answer workers must be positive", ErrInvalid)
	}
	for i, rule := range c.Categories {
		if rule.Category == "" || len(rule.Keywords) == 0 {
			return fmt.Errorf("%w: category rule %d needs a category and keywords", ErrInvalid, i)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
