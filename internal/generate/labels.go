package generate

import (
	"regexp"
	"strings"
)

// GenericSubtopics is used when no backend proposes usable subtopics.
var GenericSubtopics = []string{
	"Introduction",
	"Main Concepts",
	"Key Definitions",
	"Important Processes",
	"Applications",
}

var (
	injectionPattern = regexp.MustCompile(
		`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
			`act\s+as\s+|forget\s+(everything|all)|new\s+instructions)`,
	)
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)]|[a-zA-Z][.)])\s+`)
)

// cleanLabel normalizes a proposed chapter or subtopic name. It returns ""
// when the label is unusable.
func cleanLabel(s string, maxLen int) string {
	s = listMarker.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), `"'*#:`)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < 3 || injectionPattern.MatchString(s) {
		return ""
	}
	if r := []rune(s); len(r) > maxLen {
		s = strings.TrimSpace(string(r[:maxLen]))
	}
	return s
}

// cleanLabels keeps usable labels in order, dropping case-insensitive
// duplicates.
func cleanLabels(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = cleanLabel(s, 60)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
