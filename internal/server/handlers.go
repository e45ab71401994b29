package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/index"
	"github.com/hyperjump/noticeboard/internal/lifecycle"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/internal/search"
)

type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type statsResponse struct {
	*lifecycle.Stats
	SystemHealth string `json:"system_health"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.DocumentCount(r.Context())
	if err != nil {
		s.respondStoreError(w, "count", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "running", "chunks": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.DocumentCount(r.Context())
	if err != nil {
		s.respondStoreError(w, "count", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.lifecycle.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, "stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, statsResponse{Stats: stats, SystemHealth: "100%"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.lifecycle.Documents()
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	s.logger.Debug("delete document request", zap.String("filename", filename))
	if _, err := s.lifecycle.RemoveFile(r.Context(), filename); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidFilename) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondStoreError(w, "delete", err)
		return
	}
	s.respondJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Deleted " + filename})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	indexed, err := s.lifecycle.Save(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidFilename) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !indexed {
		s.respondJSON(w, http.StatusOK, statusMessage{Status: "warning", Message: "Failed to process text."})
		return
	}
	s.respondJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Uploaded " + header.Filename})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	n := s.lifecycle.Rescan(r.Context())
	s.respondJSON(w, http.StatusOK, statusMessage{Status: "success", Message: fmt.Sprintf("Rescanned. Indexed %d.", n)})
}

func (s *Server) handleTriggerScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		target = s.config.Scrape.TargetURL
	}
	if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.respondError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	s.logger.Info("scrape triggered", zap.String("url", target))
	s.goBackground(func(ctx context.Context) {
		s.lifecycle.Ingest(ctx, target)
	})
	s.respondJSON(w, http.StatusAccepted, statusMessage{Status: "success", Message: "Scrape started for " + target})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(s.config.Search.DefaultLimit, s.config.Search.MaxLimit); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	results, err := s.engine.Search(r.Context(), query.Query, query.Limit, query.Filters)
	if err != nil {
		s.respondStoreError(w, "search", err)
		return
	}
	response := make([]models.SearchResult, len(results))
	for i, res := range results {
		response[i] = models.NewSearchResult(res)
	}
	for i, a := range s.answers.ExtractAll(r.Context(), results, query.Query) {
		response[i].ExtractedAnswer = a.Ptr()
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var query models.ChatQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(query.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	results, err := s.engine.Search(r.Context(), query.Question, s.config.Search.ChatContextResults, nil)
	if err != nil {
		s.respondStoreError(w, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.answers.Chat(r.Context(), query.Question, results))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	n, err := s.engine.IndexDocument(r.Context(), input.Text, input.Metadata)
	if err != nil {
		if errors.Is(err, search.ErrMissingTitle) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondStoreError(w, "index", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"status": "indexed", "chunks": n})
}

// respondStoreError maps index and configuration failures to status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, index.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, index.ErrDimensionMismatch), errors.Is(err, index.ErrModelMismatch), errors.Is(err, config.ErrInvalid):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
