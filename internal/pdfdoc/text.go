// Package pdfdoc reads page text and embedded raster images from PDFs.
package pdfdoc

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsheet/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// TextResult is the linear text of a PDF plus one record per page.
type TextResult struct {
	Text       string
	Pages      []document.PageRecord
	TotalPages int
}

// pageSource abstracts the PDF library so page failures can be exercised
// without crafting broken PDFs.
type pageSource interface {
	NumPage() int
	PageText(n int) (text string, hasImages bool, err error)
}

// TextExtractor pulls text page by page. A page that fails is recorded
// with its error and skipped; the document is never aborted for it.
type TextExtractor struct {
	log *slog.Logger
}

func NewTextExtractor(log *slog.Logger) *TextExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &TextExtractor{log: log}
}

// Extract opens the PDF and extracts every page. Only failure to open the
// document is returned as an error.
func (e *TextExtractor) Extract(data []byte) (*TextResult, error) {
	src, err := openSource(data)
	if err != nil {
		return nil, err
	}
	return e.extract(src), nil
}

func (e *TextExtractor) extract(src pageSource) *TextResult {
	n := src.NumPage()
	res := &TextResult{TotalPages: n, Pages: make([]document.PageRecord, 0, n)}

	var parts []string
	for i := 1; i <= n; i++ {
		text, hasImages, err := src.PageText(i)
		if err != nil {
			e.log.Warn("page text extraction failed", "page", i, "error", err)
			res.Pages = append(res.Pages, document.PageRecord{PageNumber: i, Error: err.Error()})
			continue
		}
		res.Pages = append(res.Pages, document.PageRecord{
			PageNumber: i,
			TextLength: utf8.RuneCountInString(text),
			HasImages:  hasImages,
		})
		if strings.TrimSpace(text) != "" {
			parts = append(parts, PageMarker(i)+"\n"+strings.TrimSpace(text))
		}
	}
	res.Text = strings.Join(parts, "\n\n")
	return res
}

// PageMarker is the boundary line placed before each page's text.
func PageMarker(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

type ledongthucSource struct {
	r *pdflib.Reader
}

func openSource(data []byte) (src pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("open pdf: %v", r)
		}
	}()
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &ledongthucSource{r: r}, nil
}

func (s *ledongthucSource) NumPage() int { return s.r.NumPage() }

// PageText recovers from panics inside the library, which happen on
// malformed fonts and content streams.
func (s *ledongthucSource) PageText(n int) (text string, hasImages bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, hasImages, err = "", false, fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := s.r.Page(n)
	if page.V.IsNull() {
		return "", false, fmt.Errorf("page %d: missing page object", n)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", false, fmt.Errorf("page %d: %w", n, err)
	}
	return text, pageHasImages(page), nil
}

func pageHasImages(page pdflib.Page) bool {
	xobjects := page.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
