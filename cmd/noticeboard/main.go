// Package main is the noticeboard CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/answer"
	"github.com/hyperjump/noticeboard/internal/cli"
	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/embedding"
	"github.com/hyperjump/noticeboard/internal/extract"
	"github.com/hyperjump/noticeboard/internal/index"
	"github.com/hyperjump/noticeboard/internal/indexer"
	"github.com/hyperjump/noticeboard/internal/lifecycle"
	"github.com/hyperjump/noticeboard/internal/llm"
	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/internal/scheduler"
	"github.com/hyperjump/noticeboard/internal/scraper"
	"github.com/hyperjump/noticeboard/internal/search"
	"github.com/hyperjump/noticeboard/internal/server"
	"github.com/hyperjump/noticeboard/internal/watcher"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/noticeboard/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred; when neither exists the built-in defaults are used
// with paths relative to the current directory. A .env file next to the config (or in
// the current directory) is loaded first so API keys can live outside the config.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	resolved := path
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				resolved = fallback
			} else if _, err := os.Stat(path); os.IsNotExist(err) {
				loadEnv(cwd)
				cfg, err := config.Default(cwd)
				return cfg, "", err
			}
		}
	}
	loadEnv(filepath.Dir(resolved))
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

// loadEnv reads dir/.env without overriding variables already set.
func loadEnv(dir string) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "scan":
		runScan()
	case "scrape":
		runScrape()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("noticeboard version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger and components for a subcommand.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "watch the documents directory (overrides config)")
	noSchedule := fs.Bool("no-schedule", false, "disable scheduled scraping")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Watch.Enabled || *watch {
		w := watcher.New(cfg.Storage.DocumentsDir, cfg.Watch.Extensions,
			func(path string) { components.Manager.ProcessFile(ctx, path) },
			func(path string) {
				if _, err := components.Engine.DeleteDocument(ctx, filepath.Base(path)); err != nil {
					logger.Warn("watch de-index failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	if !*noSchedule && cfg.Scrape.Schedule != "" && cfg.Scrape.TargetURL != "" {
		sched, err := scheduler.New("scrape", cfg.Scrape.Schedule, func(ctx context.Context) {
			components.Manager.Ingest(ctx, cfg.Scrape.TargetURL)
		}, scheduler.WithLogger(logger))
		if err != nil {
			logger.Fatal("Invalid scrape schedule", zap.Error(err))
		}
		go sched.Run(ctx)
		logger.Info("scheduled scraping enabled",
			zap.String("url", cfg.Scrape.TargetURL),
			zap.String("schedule", cfg.Scrape.Schedule))
	}

	srv := server.NewServer(components.Engine, components.Manager, components.Answers, cfg, logger, components.Metrics)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: noticeboard search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Filters are key=value pairs on notice metadata (title, date, category, source_url).

Examples:
  noticeboard search exam schedule
  noticeboard search --filter category=Exams semester 3 dates
  noticeboard search --server "" --output json age of the applicant
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// filterFlag collects repeated key=value flags.
type filterFlag models.Filter

func (f filterFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f filterFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("filter must be key=value, got %q", s)
	}
	f[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the local index directly)")
	limit := fs.Int("limit", 0, "number of results (0 = configured default)")
	answers := fs.Bool("answers", true, "extract answers for the top results (direct mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	filters := filterFlag{}
	fs.Var(filters, "filter", "metadata filter key=value (repeatable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := models.SearchQuery{Query: queryStr, Limit: *limit, Filters: models.Filter(filters)}

	var results []models.SearchResult
	if *serverURL != "" {
		results, err = searchViaHTTP(*serverURL, &query)
	} else {
		results, err = searchDirect(*configPath, &query, *answers)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, queryStr, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(configPath string, query *models.SearchQuery, withAnswers bool) ([]models.SearchResult, error) {
	cfg, logger, components := setup(configPath, false)
	defer logger.Sync()
	defer components.Close()

	if err := query.Validate(cfg.Search.DefaultLimit, cfg.Search.MaxLimit); err != nil {
		return nil, err
	}
	ctx := context.Background()
	hits, err := components.Engine.Search(ctx, query.Query, query.Limit, query.Filters)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.NewSearchResult(h)
	}
	if withAnswers {
		for i, a := range components.Answers.ExtractAll(ctx, hits, query.Query) {
			results[i].ExtractedAnswer = a.Ptr()
		}
	}
	return results, nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) ([]models.SearchResult, error) {
	var results []models.SearchResult
	if err := postJSON(serverURL+"/api/search", query, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func postJSON(target string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(target, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(target string, out interface{}) error {
	resp, err := http.Get(target)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the local index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var stats *lifecycle.Stats
	if *serverURL != "" {
		stats = &lifecycle.Stats{}
		err = getJSON(strings.TrimRight(*serverURL, "/")+"/api/stats", stats)
	} else {
		_, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		stats, err = components.Manager.Stats(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// runIndex copies files into the documents directory and indexes them.
func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: noticeboard index [flags] <file-or-directory>...")
		os.Exit(1)
	}
	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	indexed, failed := 0, 0
	for _, arg := range fs.Args() {
		paths, err := indexTargets(arg, components.Extractor)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", arg, err)
			failed++
			continue
		}
		for _, p := range paths {
			ok, err := saveFile(ctx, components.Manager, p)
			switch {
			case err != nil:
				fmt.Printf("Failed %s: %v\n", p, err)
				failed++
			case !ok:
				fmt.Printf("Stored %s but no text could be indexed\n", p)
				failed++
			default:
				indexed++
			}
		}
	}
	fmt.Printf("Indexed %d file(s), %d not indexed\n", indexed, failed)
	if indexed == 0 && failed > 0 {
		os.Exit(1)
	}
}

// indexTargets expands path to the supported files it names: the file itself, or the
// supported files directly inside a directory.
func indexTargets(path string, ex *extract.Extractor) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !ex.Supported(path) {
			return nil, extract.ErrUnsupported
		}
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		p := filepath.Join(path, e.Name())
		if e.Type().IsRegular() && ex.Supported(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func saveFile(ctx context.Context, m *lifecycle.Manager, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if docsDir, err := filepath.Abs(m.Dir()); err == nil && filepath.Dir(abs) == docsDir {
		return m.ProcessFile(ctx, abs), nil
	}
	f, err := os.Open(abs)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return m.Save(ctx, filepath.Base(abs), f)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: noticeboard delete [flags] <filename>")
		os.Exit(1)
	}
	filename := fs.Arg(0)
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	deleted, err := components.Manager.RemoveFile(context.Background(), filename)
	if err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if deleted {
		fmt.Printf("Deleted %s\n", filename)
	} else {
		fmt.Printf("%s was not on disk; index entries purged\n", filename)
	}
}

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	n := components.Manager.Rescan(context.Background())
	fmt.Printf("Rescanned. Indexed %d.\n", n)
}

func runScrape() {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	target := cfg.Scrape.TargetURL
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}
	if target == "" {
		fmt.Println("Usage: noticeboard scrape [flags] <url>")
		os.Exit(1)
	}
	n := components.Manager.Ingest(context.Background(), target)
	fmt.Printf("Scraped %s. Indexed %d new file(s).\n", target, n)
}

// Components holds initialized services.
type Components struct {
	Store     *index.SQLiteStore
	Embedder  embedding.Embedder
	Engine    *search.Engine
	Extractor *extract.Extractor
	Manager   *lifecycle.Manager
	Answers   *answer.Extractor
	Metrics   *metrics.Metrics
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	m := metrics.New()

	embedder := embedding.New(embedding.Options{
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
		Logger:     logger,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := index.Open(ctx, cfg.Storage.DatabasePath,
		index.WithDimensions(embedder.Dimensions()),
		index.WithModel(embedder.Model()),
		index.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		if errors.Is(err, index.ErrModelMismatch) || errors.Is(err, index.ErrDimensionMismatch) {
			return nil, fmt.Errorf("failed to open index (re-create %s or restore the original embedding model): %w", cfg.Storage.DatabasePath, err)
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	components := &Components{Store: store, Embedder: embedder, Metrics: m}

	chunker, err := indexer.NewChunker(cfg.Search.ChunkSize, cfg.Search.Overlap())
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Engine = search.NewEngine(store, embedder, chunker, cfg.Server.BaseURL,
		search.WithLogger(logger),
		search.WithMetrics(m))

	exOpts := []extract.Option{extract.WithLogger(logger)}
	ocr := &extract.TesseractOCR{
		Binary:     cfg.OCR.Binary,
		Language:   cfg.OCR.Language,
		Preprocess: cfg.OCR.PreprocessOrDefault(),
	}
	if ocr.Available() {
		exOpts = append(exOpts, extract.WithOCR(ocr))
	} else {
		logger.Warn("tesseract not found; image notices will not be indexed")
	}
	components.Extractor = extract.NewExtractor(exOpts...)

	sc := scraper.New(scraper.Options{
		UserAgent:         cfg.Scrape.UserAgent,
		Timeout:           cfg.Scrape.Timeout,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
		Extensions:        cfg.Scrape.Extensions,
		Logger:            logger,
		Metrics:           m,
	})
	if err := os.MkdirAll(cfg.Storage.DocumentsDir, 0755); err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to create documents dir: %w", err)
	}
	components.Manager = lifecycle.NewManager(cfg.Storage.DocumentsDir, components.Engine, components.Extractor,
		lifecycle.WithScraper(sc),
		lifecycle.WithCategoryRules(cfg.Categories),
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(m))

	gen, err := llm.New(cfg.LLM)
	if err != nil {
		components.Close()
		return nil, err
	}
	if _, disabled := gen.(llm.Disabled); disabled {
		logger.Info("language model disabled; answers fall back to heuristics", zap.String("api_key_env", cfg.LLM.APIKeyEnv))
	}
	components.Answers = answer.NewExtractor(gen, cfg.Answer,
		answer.WithLogger(logger),
		answer.WithMetrics(m))
	return components, nil
}

func printUsage() {
	fmt.Println(`noticeboard - Campus notice OCR and semantic search

Usage:
  noticeboard server [flags]              Start the HTTP server (scheduled scraping, optional watcher)
  noticeboard search [flags] <query>      Search notices
  noticeboard index [flags] <path>...     Copy files into the documents directory and index them
  noticeboard delete [flags] <filename>   Delete a notice file and its index entries
  noticeboard scan [flags]                Re-index every file in the documents directory
  noticeboard scrape [flags] [url]        Download new notices from a notice board page
  noticeboard status [flags]              Show chunk count, storage and weekly activity
  noticeboard version                     Show version
  noticeboard help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/noticeboard/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --watch            Watch the documents directory for changes
  --no-schedule      Disable scheduled scraping

Search Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" to search the local index.
  --limit int        Number of results (default from config)
  --filter k=v       Metadata filter, repeatable (e.g. --filter category=Exams)
  --answers          Extract answers for the top results in direct mode (default: true)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" for the local index.
  --output string    Output format: text or json (default: text)

Environment:
  GEMINI_API_KEY     API key for answer extraction and chat (also read from .env)

Examples:
  noticeboard server --watch
  noticeboard search "exam schedule"
  noticeboard search --filter category=Fees last date for payment
  noticeboard index ~/Downloads/notice.pdf
  noticeboard scrape https://www.giet.edu/news-events/notice-board/
  noticeboard status --output json`)
}
