// Package sheet renders content rows and extracted items as an xlsx
// workbook.
package sheet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docsheet/internal/document"
)

const (
	ContentSheet  = "Content"
	TablesSheet   = "Tables"
	FormulasSheet = "Formulas"
	DiagramsSheet = "Diagrams"
	MetadataSheet = "Metadata"
	SummarySheet  = "Summary"
)

// ContentHeaders is the fixed column order of the Content sheet.
var ContentHeaders = []string{"Topic", "Subtopic", "Content", "Video Link"}

// Metadata adds the Metadata and Summary sheets when non-nil.
type Metadata struct {
	// Values are written as one row, keys sorted.
	Values map[string]any
	// Breakdown feeds the Summary counts; nil counts the detailed items.
	Breakdown   *document.Breakdown
	GeneratedAt time.Time
}

type Writer struct {
	log *slog.Logger
}

func NewWriter(log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{log: log}
}

// Write builds the workbook. Formula items also become Content rows.
func (w *Writer) Write(rows []document.ContentRow, items []document.Item, meta *Metadata) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	var tables []document.TableItem
	var formulas []document.FormulaItem
	var diagrams []document.DiagramItem
	for _, it := range items {
		switch v := it.(type) {
		case document.TableItem:
			tables = append(tables, v)
		case document.FormulaItem:
			formulas = append(formulas, v)
		case document.DiagramItem:
			diagrams = append(diagrams, v)
		}
	}

	content := make([]document.ContentRow, 0, len(rows)+len(formulas))
	content = append(content, rows...)
	for _, fm := range formulas {
		content = append(content, FormulaRow(fm))
	}

	if err := f.SetSheetName("Sheet1", ContentSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	body := make([][]any, 0, len(content))
	for _, r := range content {
		body = append(body, []any{r.Topic, r.Subtopic, r.Content, r.VideoLink})
	}
	if err := writeTable(f, st, ContentSheet, ContentHeaders, body, []float64{30, 25, 60, 20}); err != nil {
		return nil, err
	}

	if len(tables) > 0 {
		if err := writeTablesSheet(f, st, tables); err != nil {
			return nil, err
		}
	}
	if len(formulas) > 0 {
		var data [][]any
		for i, fm := range formulas {
			data = append(data, []any{i + 1, fm.Page, fm.LaTeX, fm.Description, fm.Variables})
		}
		if err := addSheet(f, st, FormulasSheet, []string{"Formula_Number", "Page", "LaTeX", "Description", "Variables"}, data, []float64{16, 8, 40, 50, 40}); err != nil {
			return nil, err
		}
	}
	if len(diagrams) > 0 {
		var data [][]any
		for i, d := range diagrams {
			data = append(data, []any{i + 1, d.Page, d.Description, string(document.Diagram)})
		}
		if err := addSheet(f, st, DiagramsSheet, []string{"Diagram_Number", "Page", "Description", "Content_Type"}, data, []float64{16, 8, 80, 14}); err != nil {
			return nil, err
		}
	}

	if meta != nil {
		if err := writeMetadata(f, st, meta.Values); err != nil {
			return nil, err
		}
		bd := meta.Breakdown
		if bd == nil {
			bd = &document.Breakdown{Tables: len(tables), Formulas: len(formulas), Diagrams: len(diagrams)}
		}
		at := meta.GeneratedAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := writeSummary(f, st, content, *bd, at); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	w.log.Debug("workbook written", "rows", len(content), "tables", len(tables), "formulas", len(formulas), "diagrams", len(diagrams), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// FormulaRow renders a formula as a Content row, wrapping LaTeX in display
// math delimiters.
func FormulaRow(fm document.FormulaItem) document.ContentRow {
	sub := fm.Description
	if sub == "" {
		sub = "Formula"
	}
	content := fm.Description
	if fm.LaTeX != "" {
		content = "$$" + fm.LaTeX + "$$"
	}
	if content == "" {
		content = "Formula"
	}
	return document.ContentRow{Topic: "Formula", Subtopic: sub, Content: content}
}

// writeTablesSheet flattens every table row; columns are the union of all
// headers in first-seen order.
func writeTablesSheet(f *excelize.File, st styles, tables []document.TableItem) error {
	headers := []string{"Table_Number", "Page"}
	seen := map[string]bool{"Table_Number": true, "Page": true}
	for _, t := range tables {
		for _, h := range t.Headers {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}
	var data [][]any
	for i, t := range tables {
		for _, row := range t.Rows {
			line := make([]any, len(headers))
			line[0], line[1] = i+1, t.Page
			for j, h := range headers[2:] {
				line[j+2] = row[h]
			}
			data = append(data, line)
		}
	}
	if len(data) == 0 {
		return nil
	}
	widths := make([]float64, len(headers))
	widths[0], widths[1] = 14, 8
	for i := 2; i < len(widths); i++ {
		widths[i] = 20
	}
	return addSheet(f, st, TablesSheet, headers, data, widths)
}

func writeMetadata(f *excelize.File, st styles, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	row := make([]any, len(keys))
	for i, k := range keys {
		row[i] = cellValue(values[k])
	}
	widths := make([]float64, len(keys))
	for i := range widths {
		widths[i] = 22
	}
	return addSheet(f, st, MetadataSheet, keys, [][]any{row}, widths)
}

func writeSummary(f *excelize.File, st styles, rows []document.ContentRow, bd document.Breakdown, at time.Time) error {
	topics, subtopics := 0, 0
	for _, r := range rows {
		if r.Topic != "" {
			topics++
		}
		if r.Subtopic != "" {
			subtopics++
		}
	}
	data := [][]any{
		{"Total Topics", topics},
		{"Total Subtopics", subtopics},
		{"Total Content Items", len(rows)},
		{"Tables Found", bd.Tables},
		{"Formulas Found", bd.Formulas},
		{"Diagrams Found", bd.Diagrams},
		{"Generated Date", at.Format("2006-01-02 15:04:05")},
	}
	return addSheet(f, st, SummarySheet, []string{"Metric", "Value"}, data, []float64{24, 24})
}

// cellValue keeps scalars as-is and renders composites as JSON.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64, float32:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
