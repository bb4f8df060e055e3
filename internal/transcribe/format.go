package transcribe

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// FormatStructured normalises model output into paragraphs separated by one
// blank line. Lines within a paragraph are joined with single spaces.
func FormatStructured(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var paragraphs []string
	for _, block := range paragraphBreak.Split(text, -1) {
		var lines []string
		for line := range strings.Lines(block) {
			if fields := strings.Fields(line); len(fields) > 0 {
				lines = append(lines, strings.Join(fields, " "))
			}
		}
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, " "))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
