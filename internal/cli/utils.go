// Package cli provides output helpers for the noticeboard command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/noticeboard/internal/lifecycle"
	"github.com/hyperjump/noticeboard/internal/models"
	"github.com/hyperjump/noticeboard/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named by s, defaulting to text.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, query string, results []models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d | Relevance: %.4f | %s | %s\n", i+1, r.RelevanceScore, r.Category, r.Date)
		fmt.Fprintf(w, "Title: %s\n", r.Title)
		fmt.Fprintf(w, "Source: %s\n", r.SourceURL)
		if r.ExtractedAnswer != nil {
			fmt.Fprintf(w, "Answer: %s\n", *r.ExtractedAnswer)
		}
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(utils.Truncate(r.Content, 200), 40))
	}
	return nil
}

// WriteStats writes corpus statistics to w in the given format.
func WriteStats(w io.Writer, stats *lifecycle.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Chunks:       %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "Storage used: %s\n", stats.StorageUsed)
	fmt.Fprintln(w, "Activity:")
	for _, d := range stats.Activity {
		fmt.Fprintf(w, "  %s %s\n", d.Name, strings.Repeat("#", d.Files))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
