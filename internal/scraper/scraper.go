// Package scraper downloads notice files linked from a notice board page.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/hyperjump/noticeboard/internal/metrics"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; noticeboard/1.0)"
	maxPageBytes     = 10 << 20
)

// DefaultExtensions are the link suffixes downloaded when none are configured.
var DefaultExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// Options configures a Scraper. Zero values use defaults.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Extensions        []string
	Client            *http.Client
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Scraper fetches a page, collects document links and downloads files not yet present.
type Scraper struct {
	client     *http.Client
	userAgent  string
	extensions []string
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	s := &Scraper{
		client:     opts.Client,
		userAgent:  opts.UserAgent,
		extensions: opts.Extensions,
		logger:     utils.OrNop(opts.Logger),
		metrics:    opts.Metrics,
	}
	if s.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if len(s.extensions) == 0 {
		s.extensions = DefaultExtensions
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return s
}

// Scrape fetches pageURL, downloads every linked document whose filename is not already
// in dir and returns the new filenames in link order. A failed page fetch is an error;
// failed downloads are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context, pageURL, dir string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid page url %q", pageURL)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}

	body, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	links, err := ExtractLinks(io.LimitReader(body, maxPageBytes), base, s.extensions)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	s.logger.Info("scraped page", zap.String("url", pageURL), zap.Int("links", len(links)))

	var downloaded []string
	seen := make(map[string]bool)
	for _, link := range links {
		name := Filename(link)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			s.metrics.ScrapeDownload("skipped")
			continue
		}
		if err := s.download(ctx, link.String(), dest); err != nil {
			if ctx.Err() != nil {
				return downloaded, ctx.Err()
			}
			s.metrics.ScrapeDownload("failed")
			s.logger.Warn("download failed", zap.String("url", link.String()), zap.Error(err))
			continue
		}
		s.metrics.ScrapeDownload("downloaded")
		s.logger.Info("downloaded notice", zap.String("filename", name))
		downloaded = append(downloaded, name)
	}
	return downloaded, nil
}

func (s *Scraper) get(ctx context.Context, target string) (io.ReadCloser, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// download writes target to dest through a temporary file in the same directory so a
// partially written file is never visible under its final name.
func (s *Scraper) download(ctx context.Context, target, dest string) error {
	body, err := s.get(ctx, target)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ExtractLinks returns the absolute URLs of <a href> links in r whose path ends with one
// of extensions (case-insensitive), resolved against base, in document order.
func ExtractLinks(r io.Reader, base *url.URL, extensions []string) ([]*url.URL, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var links []*url.URL
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if u := resolve(base, attr.Val); u != nil && hasExtension(u.Path, extensions) {
					links = append(links, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u.Fragment = ""
	return u
}

func hasExtension(p string, extensions []string) bool {
	lower := strings.ToLower(p)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Filename returns the unescaped last path segment of u, or "" when it is not a usable
// file name.
func Filename(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}
