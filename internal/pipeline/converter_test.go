package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/generate"
	"github.com/dgallion1/docsheet/internal/sheet"
)

type fakeAssembler struct {
	bundle *document.Bundle
	err    error
}

func (f *fakeAssembler) Assemble(ctx context.Context, data []byte) (*document.Bundle, error) {
	return f.bundle, f.err
}

type fakeGenerator struct {
	mu       sync.Mutex
	topics   []string
	outlines []document.Outline
	fail     bool
	block    chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, text, topic string) generate.Result {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	if f.fail {
		return generate.Result{Items: []document.ContentRow{}, Error: "no LLM backend configured"}
	}
	return generate.Result{Success: true, Items: []document.ContentRow{{Topic: topic, Subtopic: "Overview", Content: text}}}
}

func (f *fakeGenerator) Document(ctx context.Context, text string, outline document.Outline) generate.Result {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.outlines = append(f.outlines, outline)
	f.mu.Unlock()
	if f.fail {
		return generate.Result{Items: []document.ContentRow{}, Error: "no LLM backend configured"}
	}
	return generate.Result{Success: true, Items: []document.ContentRow{{Topic: generate.DefaultTopic, Subtopic: "Overview", Content: "c"}}}
}

func pdfBundle() *document.Bundle {
	return &document.Bundle{
		MergedText: "--- Page 1 ---\nChapter 1: Intro\ntext",
		Pages: []document.PageRecord{
			{PageNumber: 1, TextLength: 30, HasImages: true},
			{PageNumber: 2, Error: "broken"},
		},
		TotalPages: 2,
		Items: []document.Item{
			document.FormulaItem{Page: 1, LaTeX: "a^2+b^2=c^2", Description: "Pythagoras"},
		},
		Structure: document.Outline{
			Chapters: []document.HeadingRef{{Number: "1", Title: "Intro", Line: 2}},
			Sections: []document.HeadingRef{},
		},
		Breakdown: document.Breakdown{Formulas: 1},
		Skipped:   []document.SkippedImage{{Page: 1, Index: 2, Reason: "too small"}},
	}
}

func TestConvert_PDF(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewConverter(&fakeAssembler{bundle: pdfBundle()}, gen, sheet.NewWriter(nil), nil)
	c.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	var phases []JobStatus
	out, err := c.Convert(context.Background(), Input{
		Filename:        "uploads/Bio Notes.pdf",
		Data:            []byte("%PDF"),
		IncludeMetadata: true,
		OnPhase:         func(s JobStatus) { phases = append(phases, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, []JobStatus{StatusExtracting, StatusGenerating, StatusWriting}, phases)
	assert.Equal(t, "Bio Notes_content.xlsx", out.Filename)
	require.NotNil(t, out.Bundle)
	require.Len(t, gen.outlines, 1)
	assert.Equal(t, "Intro", gen.outlines[0].Chapters[0].Title)
	assert.Contains(t, out.Degraded, "1 page(s) failed text extraction")
	assert.Contains(t, out.Degraded, "1 image(s) skipped")

	f, err := excelize.OpenReader(bytes.NewReader(out.Workbook))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheet.ContentSheet, sheet.FormulasSheet, sheet.MetadataSheet, sheet.SummarySheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet.ContentSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header, generated row, formula row")
	assert.Equal(t, "$$a^2+b^2=c^2$$", rows[2][2])

	md, err := f.GetRows(sheet.MetadataSheet)
	require.NoError(t, err)
	assert.Contains(t, md[0], "processed_at")
	assert.Contains(t, md[1], "2025-01-02T03:04:05Z")
}

func TestConvert_RowsOnlySkipsWorkbook(t *testing.T) {
	c := NewConverter(&fakeAssembler{bundle: pdfBundle()}, &fakeGenerator{}, sheet.NewWriter(nil), nil)

	var phases []JobStatus
	out, err := c.Convert(context.Background(), Input{
		Filename: "a.pdf",
		Data:     []byte("%PDF"),
		RowsOnly: true,
		OnPhase:  func(s JobStatus) { phases = append(phases, s) },
	})
	require.NoError(t, err)
	assert.Nil(t, out.Workbook)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, []JobStatus{StatusExtracting, StatusGenerating}, phases)
}

func TestConvert_MarkdownSections(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewConverter(nil, gen, sheet.NewWriter(nil), nil)

	out, err := c.Convert(context.Background(), Input{
		Filename: "notes.md",
		Data:     []byte("# Cells\n\nCells are small.\n\n# Genes\n\nGenes carry traits.\n"),
	})
	require.NoError(t, err)

	assert.Nil(t, out.Bundle)
	assert.Equal(t, []string{"Cells", "Genes"}, gen.topics)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "Genes", out.Rows[1].Topic)
	assert.Empty(t, out.Degraded)
}

func TestConvert_PlainTextInfersOutline(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewConverter(nil, gen, sheet.NewWriter(nil), nil)

	_, err := c.Convert(context.Background(), Input{
		Filename: "notes.txt",
		Data:     []byte("Chapter 1: Motion\nThings move.\n\nChapter 2: Energy\nThings heat up.\n"),
	})
	require.NoError(t, err)

	require.Len(t, gen.outlines, 1)
	require.Len(t, gen.outlines[0].Chapters, 2)
	assert.Equal(t, "Energy", gen.outlines[0].Chapters[1].Title)
	assert.Empty(t, gen.topics)
}

func TestConvert_Errors(t *testing.T) {
	w := sheet.NewWriter(nil)

	_, err := NewConverter(nil, &fakeGenerator{}, w, nil).Convert(context.Background(), Input{Filename: "a.exe"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	boom := errors.New("cannot open")
	_, err = NewConverter(&fakeAssembler{err: boom}, &fakeGenerator{}, w, nil).Convert(context.Background(), Input{Filename: "a.pdf"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = NewConverter(&fakeAssembler{bundle: &document.Bundle{}}, &fakeGenerator{}, w, nil).Convert(context.Background(), Input{Filename: "a.pdf"})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = NewConverter(&fakeAssembler{bundle: pdfBundle()}, &fakeGenerator{fail: true}, w, nil).Convert(context.Background(), Input{Filename: "a.pdf"})
	assert.ErrorIs(t, err, ErrGenerationFailed)

	_, err = NewConverter(nil, &fakeGenerator{}, w, nil).Convert(context.Background(), Input{Filename: "a.txt", Data: []byte("  \n\n ")})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "report_content.xlsx", OutputName("/tmp/report.pdf"))
	assert.Equal(t, "document_content.xlsx", OutputName(""))
	assert.True(t, Supported("A.PDF"))
	assert.True(t, Supported("a.docx"))
	assert.False(t, Supported("a.png"))
}
