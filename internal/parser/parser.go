// Package parser turns non-PDF uploads into heading-structured trees.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
)

// Parser converts raw document bytes into a Tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Tree, error)
}

var parsers = map[string]func() Parser{
	".txt":      func() Parser { return &TextParser{} },
	".md":       func() Parser { return &MarkdownParser{} },
	".markdown": func() Parser { return &MarkdownParser{} },
	".csv":      func() Parser { return &CSVParser{} },
	".html":     func() Parser { return &HTMLParser{} },
	".htm":      func() Parser { return &HTMLParser{} },
	".docx":     func() Parser { return &DOCXParser{} },
}

// ForFile returns the parser for a filename's extension.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if mk, ok := parsers[ext]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("unsupported file extension: %s", ext)
}

// IsSupportedExtension reports whether ForFile can handle filename.
func IsSupportedExtension(filename string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// baseTitle strips the extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
