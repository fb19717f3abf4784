package sheet

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docsheet/internal/document"
)

func open(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func rowsOf(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	for i, r := range rows {
		for len(r) > 0 && r[len(r)-1] == "" {
			r = r[:len(r)-1]
		}
		rows[i] = r
	}
	return rows
}

func TestWrite_EmptyHasOnlyContentHeader(t *testing.T) {
	data, err := NewWriter(nil).Write(nil, nil, nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{ContentSheet}, f.GetSheetList())
	assert.Equal(t, [][]string{ContentHeaders}, rowsOf(t, f, ContentSheet))
}

func TestWrite_ContentAndFormulaRows(t *testing.T) {
	rows := []document.ContentRow{
		{Topic: "Cells", Subtopic: "Membranes", Content: "Lipid bilayer.", VideoLink: "https://v.example/1"},
	}
	items := []document.Item{
		document.FormulaItem{Page: 2, LaTeX: `E = mc^2`, Description: "Energy", Variables: "E; m; c"},
		document.FormulaItem{Page: 3, Description: "Unreadable ratio"},
		document.TextItem{Page: 1, Text: "ignored in sheets"},
	}
	data, err := NewWriter(nil).Write(rows, items, nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{ContentSheet, FormulasSheet}, f.GetSheetList())
	got := rowsOf(t, f, ContentSheet)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"Cells", "Membranes", "Lipid bilayer.", "https://v.example/1"}, got[1])
	assert.Equal(t, []string{"Formula", "Energy", "$$E = mc^2$$"}, got[2])
	assert.Equal(t, []string{"Formula", "Unreadable ratio", "Unreadable ratio"}, got[3])

	fr := rowsOf(t, f, FormulasSheet)
	require.Len(t, fr, 3)
	assert.Equal(t, []string{"Formula_Number", "Page", "LaTeX", "Description", "Variables"}, fr[0])
	assert.Equal(t, []string{"1", "2", "E = mc^2", "Energy", "E; m; c"}, fr[1])

	panes, err := f.GetPanes(ContentSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
}

func TestWrite_TablesAndDiagrams(t *testing.T) {
	items := []document.Item{
		document.TableItem{Page: 1, Headers: []string{"Name", "Age"}, Rows: []map[string]string{{"Name": "Ann", "Age": "31"}}},
		document.TableItem{Page: 4, Headers: []string{"Name", "City"}, Rows: []map[string]string{{"Name": "Bo", "City": "Oslo"}}},
		document.DiagramItem{Page: 5, Description: "A cycle"},
	}
	data, err := NewWriter(nil).Write(nil, items, nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{ContentSheet, TablesSheet, DiagramsSheet}, f.GetSheetList())
	tr := rowsOf(t, f, TablesSheet)
	require.Len(t, tr, 3)
	assert.Equal(t, []string{"Table_Number", "Page", "Name", "Age", "City"}, tr[0])
	assert.Equal(t, []string{"1", "1", "Ann", "31"}, tr[1])
	assert.Equal(t, []string{"2", "4", "Bo", "", "Oslo"}, tr[2])

	dr := rowsOf(t, f, DiagramsSheet)
	assert.Equal(t, []string{"1", "5", "A cycle", "diagram"}, dr[1])
}

func TestWrite_MetadataAndSummary(t *testing.T) {
	rows := []document.ContentRow{
		{Topic: "A", Subtopic: "a1", Content: "x"},
		{Topic: "A", Content: "y"},
	}
	meta := &Metadata{
		Values: map[string]any{
			"filename":    "bio.pdf",
			"total_pages": 3,
			"chapters":    []string{"One"},
		},
		Breakdown:   &document.Breakdown{Tables: 2, Formulas: 1},
		GeneratedAt: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	data, err := NewWriter(nil).Write(rows, nil, meta)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{ContentSheet, MetadataSheet, SummarySheet}, f.GetSheetList())
	md := rowsOf(t, f, MetadataSheet)
	assert.Equal(t, []string{"chapters", "filename", "total_pages"}, md[0])
	assert.Equal(t, []string{`["One"]`, "bio.pdf", "3"}, md[1])

	sm := rowsOf(t, f, SummarySheet)
	assert.Equal(t, [][]string{
		{"Metric", "Value"},
		{"Total Topics", "2"},
		{"Total Subtopics", "1"},
		{"Total Content Items", "2"},
		{"Tables Found", "2"},
		{"Formulas Found", "1"},
		{"Diagrams Found", "0"},
		{"Generated Date", "2025-03-04 05:06:07"},
	}, sm)
}

func TestParseRows(t *testing.T) {
	in := []any{
		"```json\n[{\"topic\":\"T\",\"subtopic\":\"S\",\"content\":\" C \",\"video_link\":\"\"}]\n```",
		`{"topic":"T2","content":"C2"}`,
		map[string]any{"Topic": "T3", "Subtopic": "S3", "Content": "C3", "Video Link": "L3"},
		"just some prose",
		42,
		document.ContentRow{Topic: " T5 ", Content: "C5"},
	}
	got := ParseRows(in)
	assert.Equal(t, []document.ContentRow{
		{Topic: "T", Subtopic: "S", Content: "C"},
		{Topic: "T2", Content: "C2"},
		{Topic: "T3", Subtopic: "S3", Content: "C3", VideoLink: "L3"},
		{Content: "just some prose"},
		{Content: "42"},
		{Topic: "T5", Content: "C5"},
	}, got)
}

func TestParseRows_Idempotent(t *testing.T) {
	first := ParseRows([]any{
		"```json\n[{\"topic\":\"T\",\"subtopic\":\"S\",\"content\":\"C\"}]\n```",
		"loose text",
	})

	// Feed the normalized rows back in, both as rows and as decoded JSON.
	asRows := make([]any, len(first))
	for i, r := range first {
		asRows[i] = r
	}
	assert.Equal(t, first, ParseRows(asRows))

	raw, err := json.Marshal(first)
	require.NoError(t, err)
	var decoded []any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, first, ParseRows(decoded))
}

func TestValidate(t *testing.T) {
	r := Validate([]document.ContentRow{
		{Topic: "T", Subtopic: "S", Content: "C", VideoLink: "L"},
		{Content: "C"},
		{Topic: "T"},
	})
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"row 3: missing content"}, r.Errors)
	assert.Contains(t, r.Warnings, "row 2: missing topic")
	assert.Equal(t, ValidationStats{TotalItems: 3, ItemsWithTopic: 2, ItemsWithSubtopic: 1, ItemsWithContent: 2, ItemsWithVideoLink: 1}, r.Stats)

	ok := Validate([]document.ContentRow{{Topic: "T", Subtopic: "S", Content: "C"}})
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Warnings)
}
