// Package metrics exposes Prometheus instrumentation for indexing, search, answer
// extraction, scraping and the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "noticeboard"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	documentsIndexed *prometheus.CounterVec
	chunksIndexed    prometheus.Counter
	chunksDeleted    prometheus.Counter
	searchDuration   prometheus.Histogram
	answers          *prometheus.CounterVec
	scrapeDownloads  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Files run through extraction and indexing, by result.",
		}, []string{"result"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the index store.",
		}),
		chunksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_deleted_total",
			Help:      "Chunks removed from the index store by document deletion.",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of embedding a query and ranking stored chunks.",
			Buckets:   prometheus.DefBuckets,
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_extractions_total",
			Help:      "Answer extraction outcomes by source and status.",
		}, []string{"source", "status"}),
		scrapeDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_downloads_total",
			Help:      "Notice files fetched by the scraper, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIndexed, m.chunksIndexed, m.chunksDeleted, m.searchDuration,
		m.answers, m.scrapeDownloads, m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// DocumentProcessed records one file outcome ("indexed", "empty", "failed").
func (m *Metrics) DocumentProcessed(result string) {
	if m == nil {
		return
	}
	m.documentsIndexed.WithLabelValues(result).Inc()
}

// ChunksIndexed adds n written chunks.
func (m *Metrics) ChunksIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksIndexed.Add(float64(n))
}

// ChunksDeleted adds n removed chunks.
func (m *Metrics) ChunksDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksDeleted.Add(float64(n))
}

// ObserveSearch records one search latency.
func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
}

// AnswerExtracted records one extraction outcome.
func (m *Metrics) AnswerExtracted(source, status string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(source, status).Inc()
}

// ScrapeDownload records one scraped file ("downloaded", "skipped", "failed").
func (m *Metrics) ScrapeDownload(result string) {
	if m == nil {
		return
	}
	m.scrapeDownloads.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
