package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other stat or walk errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

// DatabaseFiles returns dbPath with its SQLite WAL and shared-memory companions.
func DatabaseFiles(dbPath string) []string {
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// FormatMB renders a byte count as megabytes with two decimals, e.g. "1.25 MB".
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// Weekdays lists day labels in the order activity is reported.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayActivity is the number of files last modified on a weekday.
type DayActivity struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
}

// WeekdayActivity counts the regular files directly inside dir by the weekday of their
// modification time, in Weekdays order. A missing directory yields all zeros.
func WeekdayActivity(dir string) ([]DayActivity, error) {
	counts := make(map[string]int, len(Weekdays))
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		counts[info.ModTime().Weekday().String()[:3]]++
	}
	out := make([]DayActivity, len(Weekdays))
	for i, day := range Weekdays {
		out[i] = DayActivity{Name: day, Files: counts[day]}
	}
	return out, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
