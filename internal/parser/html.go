package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// sanitizer drops scripts, styles and event handlers while keeping the
// headings and block elements the walker reads.
var sanitizer = bluemonday.UGCPolicy()

// HTMLParser builds a tree from h1-h6 and block-level text.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Tree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	title := baseTitle(filename)
	if full, err := html.Parse(bytes.NewReader(raw)); err == nil {
		if t := findElementText(full, "title"); t != "" {
			title = t
		}
	}

	doc, err := html.Parse(bytes.NewReader(sanitizer.SanitizeBytes(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	b := newOutlineBuilder()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := htmlHeadingLevel(n.Data); level > 0 {
				b.heading(level, nodeText(n))
				return
			}
			switch n.Data {
			case "nav", "footer", "header":
				return
			case "p", "li", "td", "th", "blockquote", "pre", "dd", "dt":
				b.paragraph(nodeText(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return b.tree(title), nil
}

func htmlHeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findElementText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		return nodeText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findElementText(c, tag); t != "" {
			return t
		}
	}
	return ""
}
