// Package chunker cuts text into the bounded windows handed to the content
// generator and folds parsed trees into topic sections.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsheet/internal/document"
)

// Section is one unit of generation: a topic label and its text.
type Section struct {
	Topic string
	Text  string
}

// Sections folds a tree into one section per top-level heading. Untitled
// top-level nodes are merged into the neighbouring section, or form a
// section named after the tree when no heading exists yet.
func Sections(tree *document.Tree) []Section {
	var out []Section
	for _, n := range tree.Children {
		text := n.FullText()
		if n.Title == "" {
			if len(out) > 0 {
				out[len(out)-1].Text = joinParagraphs(out[len(out)-1].Text, text)
				continue
			}
			out = append(out, Section{Topic: tree.Title, Text: text})
			continue
		}
		out = append(out, Section{Topic: n.Title, Text: text})
	}

	kept := out[:0]
	for _, s := range out {
		if strings.TrimSpace(s.Text) != "" {
			kept = append(kept, s)
		}
	}
	return kept
}

// Window returns at most maxChars characters from the start of text,
// cut back to the last sentence or word boundary when one is close.
func Window(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	cut := string([]rune(text)[:maxChars])

	// Prefer a sentence end in the last fifth of the window.
	floor := len(cut) * 4 / 5
	if i := lastSentenceEnd(cut); i >= floor {
		return cut[:i+1]
	}
	if i := strings.LastIndexAny(cut, " \n\t"); i >= floor {
		return strings.TrimSpace(cut[:i])
	}
	return cut
}

// Prefix is Window without boundary adjustment plus an ellipsis marker
// when the text was cut.
func Prefix(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if maxChars <= 0 || len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars]) + "..."
}

func lastSentenceEnd(s string) int {
	best := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				best = i
			}
		}
	}
	return best
}

func joinParagraphs(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
