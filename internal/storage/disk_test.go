package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	// Single file
	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	// Directory
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	// Multiple paths (file + dir)
	got, err = DiskUsageBytes(f1, sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("file+dir: got %d bytes, want 8", got)
	}

	// Missing path is skipped
	got, err = DiskUsageBytes(f1, filepath.Join(dir, "nonexistent"), sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("with missing: got %d bytes, want 8", got)
	}

	// Empty path is skipped
	got, err = DiskUsageBytes("", f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("with empty path: got %d bytes, want 5", got)
	}
}

func TestWeekdayActivity(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "notice.pdf")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// 2025-10-06 is a Monday.
	monday := time.Date(2025, 10, 6, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(f, monday, monday); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := WeekdayActivity(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 7 || got[0].Name != "Mon" || got[6].Name != "Sun" {
		t.Fatalf("unexpected layout: %+v", got)
	}
	if weekdayOf(monday) != "Mon" || got[0].Files != 1 {
		t.Errorf("Mon files = %d, want 1", got[0].Files)
	}
	total := 0
	for _, d := range got {
		total += d.Files
	}
	if total != 1 {
		t.Errorf("total files = %d, want 1 (directories are not counted)", total)
	}

	missing, err := WeekdayActivity(filepath.Join(dir, "missing"))
	if err != nil || len(missing) != 7 {
		t.Errorf("missing dir: %v, %v", missing, err)
	}
}

func TestFormatMB(t *testing.T) {
	if got := FormatMB(0); got != "0.00 MB" {
		t.Errorf("FormatMB(0) = %s", got)
	}
	if got := FormatMB(1536 * 1024); got != "1.50 MB" {
		t.Errorf("FormatMB = %s", got)
	}
}

func weekdayOf(t time.Time) string { return t.Weekday().String()[:3] }
