// Package document holds the request-scoped data model shared by the
// extraction, generation and export stages.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PageRecord describes one PDF page after text extraction.
type PageRecord struct {
	PageNumber int    `json:"page_number"`
	TextLength int    `json:"text_length"`
	HasImages  bool   `json:"has_images"`
	Error      string `json:"error,omitempty"`
}

// ContentType is the classification assigned to an embedded image.
type ContentType string

const (
	Table   ContentType = "table"
	Formula ContentType = "formula"
	Diagram ContentType = "diagram"
	General ContentType = "general"
)

// ParseContentType maps a loose label onto a ContentType; unknown labels
// are General.
func ParseContentType(s string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case Table:
		return Table
	case Formula:
		return Formula
	case Diagram:
		return Diagram
	}
	return General
}

// Item is one extracted artifact. Implementations: TextItem, TableItem,
// FormulaItem, DiagramItem.
type Item interface {
	PageNumber() int
	// Line renders the item as a single tagged line for the merged text.
	Line() string
	isItem()
}

// TextItem is plain text recovered from an image. Source records the
// classification that produced it, which differs from General when a
// structured extraction degraded to text.
type TextItem struct {
	Page   int         `json:"page"`
	Text   string      `json:"text"`
	Source ContentType `json:"source"`
}

type TableItem struct {
	Page    int                 `json:"page"`
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
	Notes   string              `json:"notes,omitempty"`
}

// FormulaItem carries LaTeX when it could be recovered; otherwise only the
// description is set.
type FormulaItem struct {
	Page        int    `json:"page"`
	LaTeX       string `json:"latex"`
	Description string `json:"description"`
	Variables   string `json:"variables,omitempty"`
}

type DiagramItem struct {
	Page        int    `json:"page"`
	Description string `json:"description"`
}

func (TextItem) isItem()    {}
func (TableItem) isItem()   {}
func (FormulaItem) isItem() {}
func (DiagramItem) isItem() {}

func (i TextItem) PageNumber() int    { return i.Page }
func (i TableItem) PageNumber() int   { return i.Page }
func (i FormulaItem) PageNumber() int { return i.Page }
func (i DiagramItem) PageNumber() int { return i.Page }

func (i TextItem) Line() string {
	label := "Image"
	switch i.Source {
	case Table:
		label = "Table"
	case Formula:
		label = "Formula"
	case Diagram:
		label = "Diagram"
	}
	return fmt.Sprintf("[%s from page %d]: %s", label, i.Page, i.Text)
}

func (i TableItem) Line() string {
	var b strings.Builder
	b.WriteString(strings.Join(i.Headers, " | "))
	for _, row := range i.Rows {
		cells := make([]string, len(i.Headers))
		for j, h := range i.Headers {
			cells[j] = row[h]
		}
		b.WriteString("; ")
		b.WriteString(strings.Join(cells, " | "))
	}
	return fmt.Sprintf("[Table from page %d]: %s", i.Page, b.String())
}

func (i FormulaItem) Line() string {
	body := i.LaTeX
	if body == "" {
		body = i.Description
	}
	return fmt.Sprintf("[Formula from page %d]: %s", i.Page, body)
}

func (i DiagramItem) Line() string {
	return fmt.Sprintf("[Diagram from page %d]: %s", i.Page, i.Description)
}

// MarshalJSON adds a "type" discriminator to each item.
func (i TextItem) MarshalJSON() ([]byte, error) {
	type plain TextItem
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"text", plain(i)})
}

func (i TableItem) MarshalJSON() ([]byte, error) {
	type plain TableItem
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"table", plain(i)})
}

func (i FormulaItem) MarshalJSON() ([]byte, error) {
	type plain FormulaItem
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"formula", plain(i)})
}

func (i DiagramItem) MarshalJSON() ([]byte, error) {
	type plain DiagramItem
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{"diagram", plain(i)})
}

// HeadingRef anchors a chapter or section heading to a 1-based line of the
// text it was inferred from.
type HeadingRef struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Line   int    `json:"line"`
}

// Outline is the inferred chapter/section structure, ordered by line.
type Outline struct {
	Chapters []HeadingRef `json:"chapters"`
	Sections []HeadingRef `json:"sections"`
}

// ContentRow is one row of the exported spreadsheet.
type ContentRow struct {
	Topic     string `json:"topic"`
	Subtopic  string `json:"subtopic"`
	Content   string `json:"content"`
	VideoLink string `json:"video_link"`
}

// Breakdown counts extracted images by classification.
type Breakdown struct {
	Tables        int `json:"tables"`
	Formulas      int `json:"formulas"`
	Diagrams      int `json:"diagrams"`
	GeneralImages int `json:"general_images"`
}

func (b *Breakdown) Add(ct ContentType) {
	switch ct {
	case Table:
		b.Tables++
	case Formula:
		b.Formulas++
	case Diagram:
		b.Diagrams++
	default:
		b.GeneralImages++
	}
}

// SkippedImage records an image excluded from the bundle.
type SkippedImage struct {
	Page   int    `json:"page"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Bundle is everything the assembler learned about one PDF.
type Bundle struct {
	MergedText string         `json:"merged_text"`
	Pages      []PageRecord   `json:"pages"`
	TotalPages int            `json:"total_pages"`
	Items      []Item         `json:"items"`
	Structure  Outline        `json:"structure"`
	Breakdown  Breakdown      `json:"content_breakdown"`
	Skipped    []SkippedImage `json:"skipped_images,omitempty"`
}

// PagesWithText counts pages whose extraction produced text.
func (b *Bundle) PagesWithText() int {
	n := 0
	for _, p := range b.Pages {
		if p.TextLength > 0 {
			n++
		}
	}
	return n
}

// PageErrors counts pages that failed extraction.
func (b *Bundle) PageErrors() int {
	n := 0
	for _, p := range b.Pages {
		if p.Error != "" {
			n++
		}
	}
	return n
}

// DecodeItem reverses the MarshalJSON encoding of an Item, dispatching on
// its "type" field.
func DecodeItem(data []byte) (Item, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	var (
		item Item
		err  error
	)
	switch head.Type {
	case "text":
		var v TextItem
		err = json.Unmarshal(data, &v)
		item = v
	case "table":
		var v TableItem
		err = json.Unmarshal(data, &v)
		item = v
	case "formula":
		var v FormulaItem
		err = json.Unmarshal(data, &v)
		item = v
	case "diagram":
		var v DiagramItem
		err = json.Unmarshal(data, &v)
		item = v
	default:
		return nil, fmt.Errorf("decode item: unknown type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s item: %w", head.Type, err)
	}
	return item, nil
}
