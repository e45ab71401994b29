// Package server provides the HTTP API of the notice board.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/answer"
	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/lifecycle"
	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/internal/search"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

const maxUploadBytes = 64 << 20

// Server is the HTTP server for the notice board API.
type Server struct {
	engine    *search.Engine
	lifecycle *lifecycle.Manager
	answers   *answer.Extractor
	config    *config.Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
	server    *http.Server

	// background work (manual scrapes) outlives its request but not the server
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewServer creates a server with the given dependencies. metrics may be nil.
func NewServer(
	engine *search.Engine,
	manager *lifecycle.Manager,
	answers *answer.Extractor,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	logger = utils.OrNop(logger)
	return &Server{
		engine:    engine,
		lifecycle: manager,
		answers:   answers,
		config:    cfg,
		metrics:   m,
		logger:    logger,
		bgCtx:     ctx,
		bgCancel:  cancel,
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metricsHandler())
	r.Handle("/files/*", http.StripPrefix("/files/", s.filesHandler()))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Get("/stats", s.handleStats)
		r.Get("/count", s.handleCount)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents/{filename}", s.handleDeleteDocument)
		r.Post("/upload", s.handleUpload)
		r.Post("/scan", s.handleScan)
		r.Post("/trigger-scrape", s.handleTriggerScrape)
		r.With(middleware.Compress(5)).Post("/search", s.handleSearch)
		r.Post("/chat", s.handleChat)
		r.Post("/index", s.handleIndex)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server, cancels background work and waits for it.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background work still running at shutdown")
	}
	return err
}

// goBackground runs fn on the server's background context.
func (s *Server) goBackground(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.bgCtx)
	}()
}

func (s *Server) metricsHandler() http.Handler {
	if s.metrics == nil {
		return http.NotFoundHandler()
	}
	return s.metrics.Handler()
}

// filesHandler serves documents without directory listings.
func (s *Server) filesHandler() http.Handler {
	fs := http.FileServer(http.Dir(s.lifecycle.Dir()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// requestLogger logs each request and records its latency by route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		took := time.Since(start)
		s.metrics.ObserveHTTP(route, r.Method, fmt.Sprint(status), took)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("took", took),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
