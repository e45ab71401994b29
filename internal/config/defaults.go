package config

import "time"

const defaultChunkOverlap = 50

// DefaultCategoryRules is the ordered keyword rule set used when the config has none.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Category: "Resume", Keywords: []string{"resume", "curriculum vitae"}},
		{Category: "Exams", Keywords: []string{"exam", "schedule"}},
		{Category: "Fees", Keywords: []string{"fee", "payment"}},
		{Category: "Scholarships", Keywords: []string{"scholarship", "st/sc", "obc"}},
		{Category: "Academics", Keywords: []string{"lab", "syllabus"}},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8000"
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/vectors.db"
	}
	if cfg.Storage.DocumentsDir == "" {
		cfg.Storage.DocumentsDir = "./documents"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 50
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 500
	}
	if cfg.Search.ChatContextResults == 0 {
		cfg.Search.ChatContextResults = 5
	}
	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = 3
	}
	if cfg.Answer.Workers == 0 {
		cfg.Answer.Workers = 3
	}
	if cfg.Answer.ContextChars == 0 {
		cfg.Answer.ContextChars = 2000
	}
	if cfg.Answer.MaxAnswerLen == 0 {
		cfg.Answer.MaxAnswerLen = 50
	}
	if cfg.Answer.MinBirthYear == 0 {
		cfg.Answer.MinBirthYear = 1980
	}
	if cfg.Answer.MinAge == 0 {
		cfg.Answer.MinAge = 15
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 5
	}
	if cfg.Scrape.TargetURL == "" {
		cfg.Scrape.TargetURL = "https://www.giet.edu/news-events/notice-board/"
	}
	if cfg.Scrape.Schedule == "" {
		cfg.Scrape.Schedule = "@hourly"
	}
	if cfg.Scrape.UserAgent == "" {
		cfg.Scrape.UserAgent = "Mozilla/5.0 (compatible; noticeboard/1.0)"
	}
	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = 15 * time.Second
	}
	if cfg.Scrape.RequestsPerSecond == 0 {
		cfg.Scrape.RequestsPerSecond = 2
	}
	if cfg.Scrape.Extensions == nil {
		cfg.Scrape.Extensions = []string{".pdf", ".jpg", ".jpeg", ".png"}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".xlsx", ".txt"}
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.Categories == nil {
		cfg.Categories = DefaultCategoryRules()
	}
}
