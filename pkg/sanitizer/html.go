package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every HTML element from user text. Line breaks are
// kept so multi-paragraph reviews survive; runs of blank lines are collapsed.
func SanitizeText(s string) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(s))

	lines := strings.Split(cleaned, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = TrimAndNormalize(line)
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// SanitizeLine strips HTML and collapses all whitespace into single spaces.
func SanitizeLine(s string) string {
	return TrimAndNormalize(html.UnescapeString(strictPolicy.Sanitize(s)))
}
