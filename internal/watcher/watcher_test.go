package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.changed = append(r.changed, filepath.Base(path))
	r.mu.Unlock()
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	r.removed = append(r.removed, filepath.Base(path))
	r.mu.Unlock()
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := New(dir, []string{".txt", ".pdf"}, rec.onChange, rec.onRemove, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_debouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "notice.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("exam notice"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, func() bool { c, _ := rec.snapshot(); return len(c) > 0 })
	time.Sleep(250 * time.Millisecond)
	if c, _ := rec.snapshot(); len(c) != 1 || c[0] != "notice.txt" {
		t.Errorf("changed = %v, want one notice.txt", c)
	}
}

func TestWatcher_filtersAndRemovals(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	for _, name := range []string{"skip.xyz", ".upload-123", "keep.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { c, _ := rec.snapshot(); return len(c) > 0 })
	if err := os.Remove(filepath.Join(dir, "keep.pdf")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, r := rec.snapshot(); return len(r) > 0 })

	c, r := rec.snapshot()
	if len(c) != 1 || c[0] != "keep.pdf" {
		t.Errorf("changed = %v, want [keep.pdf]", c)
	}
	if len(r) != 1 || r[0] != "keep.pdf" {
		t.Errorf("removed = %v, want [keep.pdf]", r)
	}
}

func TestWatcher_createsDirAndStopsTwice(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "documents")
	w := New(dir, nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("documents dir not created: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}
