package lifecycle

import (
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/noticeboard/internal/config"
	"github.com/hyperjump/noticeboard/internal/models"
)

const months = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*`

// datePatterns are tried in order; the first pattern with a match wins, regardless of
// where in the text each pattern matches.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+` + months + `\.?,?\s+\d{4}`),
	regexp.MustCompile(`(?i)\b` + months + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
}

// DetectDate returns the first date found in text, as written, or now formatted as
// YYYY-MM-DD when there is none.
func DetectDate(text string, now time.Time) string {
	for _, p := range datePatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return now.Format("2006-01-02")
}

// Categorize returns the category of the first rule with a keyword contained in the
// lower-cased text, or General.
func Categorize(text string, rules []config.CategoryRule) string {
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Category
			}
		}
	}
	return string(models.CategoryGeneral)
}
