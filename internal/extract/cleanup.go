package extract

import (
	"strings"
	"unicode"
)

// CleanupText drops OCR garbage: empty lines, lines with fewer than two ASCII letters
// or digits, and lines where under half the characters are alphanumeric. Kept lines
// are trimmed and joined with newlines.
func CleanupText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ascii, alnum, total := 0, 0, 0
		for _, r := range line {
			total++
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				ascii++
			}
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				alnum++
			}
		}
		if ascii < 2 {
			continue
		}
		if float64(alnum)/float64(total) < 0.5 {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
