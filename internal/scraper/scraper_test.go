package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const noticePage = `<html><body>
<a href="/files/exam%20schedule.pdf">Exam</a>
<a href="notices/fees.PNG">Fees</a>
<a href="https://example.org/page.html">Other</a>
<a href="mailto:office@example.org">Mail</a>
<a href="/files/exam%20schedule.pdf#page=2">Duplicate</a>
<a href="/broken.jpg">Broken</a>
<a>No href</a>
</body></html>`

func newTestServer(t *testing.T, agent *atomic.Value) *httptest.Server {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/board/":
			agent.Store(r.Header.Get("User-Agent"))
			io.WriteString(w, noticePage)
		case "/files/exam schedule.pdf":
			fmt.Fprint(w, "pdf bytes")
		case "/board/notices/fees.PNG":
			fmt.Fprint(w, "png bytes")
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape(t *testing.T) {
	var agent atomic.Value
	srv := newTestServer(t, &agent)
	dir := t.TempDir()
	s := New(Options{UserAgent: "test-agent", Client: srv.Client()})

	got, err := s.Scrape(context.Background(), srv.URL+"/board/", dir)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	want := []string{"exam schedule.pdf", "fees.PNG"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("downloaded = %v, want %v", got, want)
	}
	data, err := os.ReadFile(filepath.Join(dir, "exam schedule.pdf"))
	if err != nil || string(data) != "pdf bytes" {
		t.Errorf("downloaded content = %q, %v", data, err)
	}
	if agent.Load() != "test-agent" {
		t.Errorf("User-Agent = %v", agent.Load())
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".download-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}

	again, err := s.Scrape(context.Background(), srv.URL+"/board/", dir)
	if err != nil {
		t.Fatalf("second Scrape: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second scrape downloaded %v, want nothing", again)
	}
}

func TestScrape_pageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := New(Options{Client: srv.Client()})
	if _, err := s.Scrape(context.Background(), srv.URL, t.TempDir()); err == nil {
		t.Error("expected error for failing page")
	}
	if _, err := s.Scrape(context.Background(), "not a url", t.TempDir()); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestExtractLinks(t *testing.T) {
	base, _ := url.Parse("https://campus.example/news/board/")
	links, err := ExtractLinks(strings.NewReader(noticePage), base, DefaultExtensions)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, l := range links {
		got = append(got, l.String())
	}
	want := []string{
		"https://campus.example/files/exam%20schedule.pdf",
		"https://campus.example/news/board/notices/fees.PNG",
		"https://campus.example/files/exam%20schedule.pdf",
		"https://campus.example/broken.jpg",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("links =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestFilename(t *testing.T) {
	tests := map[string]string{
		"https://x/a/notice.pdf":      "notice.pdf",
		"https://x/a/my%20notice.pdf": "my notice.pdf",
		"https://x/":                  "",
		"https://x/.hidden.pdf":       "",
	}
	for raw, want := range tests {
		u, _ := url.Parse(raw)
		if got := Filename(u); got != want {
			t.Errorf("Filename(%s) = %q, want %q", raw, got, want)
		}
	}
}
