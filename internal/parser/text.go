package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
)

// TextParser splits plain text into paragraph nodes. Headings are not
// guessed here; the structure inferencer runs over the flattened text.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &document.Tree{Title: baseTitle(filename)}
	var para []string
	emit := func() {
		if len(para) > 0 {
			tree.Children = append(tree.Children, &document.Node{Text: strings.Join(para, "\n")})
			para = para[:0]
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		para = append(para, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	emit()

	return tree, nil
}
