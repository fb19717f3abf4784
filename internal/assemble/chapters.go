package assemble

import (
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
)

// Chapter is the text belonging to one chapter heading.
type Chapter struct {
	Heading document.HeadingRef
	Text    string
}

// Chapters slices text at each chapter's line. A chapter ends where the
// next one starts; the last runs to the end of the text.
func Chapters(text string, outline document.Outline) []Chapter {
	if len(outline.Chapters) == 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]Chapter, 0, len(outline.Chapters))
	for i, h := range outline.Chapters {
		start := h.Line - 1
		end := len(lines)
		if i+1 < len(outline.Chapters) {
			end = outline.Chapters[i+1].Line - 1
		}
		start = min(max(start, 0), len(lines))
		end = min(max(end, start), len(lines))
		out = append(out, Chapter{Heading: h, Text: strings.TrimSpace(strings.Join(lines[start:end], "\n"))})
	}
	return out
}
