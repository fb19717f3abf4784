package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
)

// csvBatch is the number of data rows grouped under one heading.
const csvBatch = 20

// CSVParser renders rows as "header: value" lines, grouped in batches.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &document.Tree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers, rows := records[0], records[1:]
	for start := 0; start < len(rows); start += csvBatch {
		end := min(start+csvBatch, len(rows))

		var b strings.Builder
		for _, row := range rows[start:end] {
			fields := make([]string, 0, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					fields = append(fields, headers[j]+": "+cell)
				} else {
					fields = append(fields, cell)
				}
			}
			b.WriteString(strings.Join(fields, ", "))
			b.WriteString("\n")
		}

		tree.Children = append(tree.Children, &document.Node{
			// Spreadsheet row numbers: header is row 1.
			Title: fmt.Sprintf("Rows %d-%d", start+2, end+1),
			Text:  strings.TrimSpace(b.String()),
		})
	}
	return tree, nil
}
