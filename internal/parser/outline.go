package parser

import (
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
)

// outlineBuilder nests headings by level and attaches body text to the
// innermost open heading.
type outlineBuilder struct {
	root  *document.Node
	stack []openHeading
	body  strings.Builder
}

type openHeading struct {
	node  *document.Node
	level int
}

func newOutlineBuilder() *outlineBuilder {
	root := &document.Node{}
	return &outlineBuilder{root: root, stack: []openHeading{{node: root}}}
}

func (b *outlineBuilder) heading(level int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	b.flush()
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	n := &document.Node{Title: title}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, openHeading{node: n, level: level})
}

func (b *outlineBuilder) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.body.Len() > 0 {
		b.body.WriteString("\n\n")
	}
	b.body.WriteString(text)
}

func (b *outlineBuilder) flush() {
	t := strings.TrimSpace(b.body.String())
	b.body.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree finishes the outline. Text that appeared before the first heading
// becomes a leading untitled node.
func (b *outlineBuilder) tree(title string) *document.Tree {
	b.flush()
	t := &document.Tree{Title: title}
	if b.root.Text != "" {
		t.Children = append(t.Children, &document.Node{Text: b.root.Text})
	}
	t.Children = append(t.Children, b.root.Children...)
	return t
}
