package document

import "strings"

// Tree is a heading-structured text document parsed from a non-PDF source.
type Tree struct {
	Title    string  // From metadata or filename
	Children []*Node // Top-level sections
}

// Node is a recursive section in the tree.
type Node struct {
	Title    string  // Heading (empty for leaf text)
	Text     string  // Body text directly under the heading
	Children []*Node // Subsections
}

// HasHeadings reports whether any top-level node carries a heading.
func (t *Tree) HasHeadings() bool {
	for _, n := range t.Children {
		if n.Title != "" {
			return true
		}
	}
	return false
}

// Text flattens the tree into plain text, one heading or paragraph block per
// line group, in document order.
func (t *Tree) Text() string {
	var b strings.Builder
	for _, n := range t.Children {
		n.write(&b)
	}
	return strings.TrimSpace(b.String())
}

// FullText flattens the node and its descendants.
func (n *Node) FullText() string {
	var b strings.Builder
	n.write(&b)
	return strings.TrimSpace(b.String())
}

func (n *Node) write(b *strings.Builder) {
	if n.Title != "" {
		b.WriteString(n.Title)
		b.WriteString("\n")
	}
	if n.Text != "" {
		b.WriteString(n.Text)
		b.WriteString("\n\n")
	}
	for _, c := range n.Children {
		c.write(b)
	}
}
