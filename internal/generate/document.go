package generate

import (
	"context"
	"strings"

	"github.com/dgallion1/docsheet/internal/assemble"
	"github.com/dgallion1/docsheet/internal/document"
)

// Document generates rows for a whole document: one Generate call per
// chapter, or a single call when no chapters were found.
func (g *Generator) Document(ctx context.Context, text string, outline document.Outline) Result {
	chapters := assemble.Chapters(text, outline)
	if len(chapters) == 0 {
		return g.Generate(ctx, text, DefaultTopic)
	}

	res := Result{Items: []document.ContentRow{}}
	var notes []string
	for _, ch := range chapters {
		if ctx.Err() != nil {
			notes = append(notes, "stopped early: "+ctx.Err().Error())
			break
		}
		if ch.Text == "" {
			continue
		}
		topic := chapterTopic(ch.Heading)
		r := g.Generate(ctx, ch.Text, topic)
		res.Items = append(res.Items, r.Items...)
		if r.Error != "" {
			notes = append(notes, topic+": "+r.Error)
		}
	}
	res.Success = len(res.Items) > 0
	res.Error = strings.Join(notes, "; ")
	return res
}

// chapterTopic labels rows with the chapter number when the heading had one.
func chapterTopic(h document.HeadingRef) string {
	switch {
	case h.Number == "":
		return h.Title
	case h.Title == "":
		return "Chapter " + h.Number
	}
	return "Chapter " + h.Number + ": " + h.Title
}
