// Package pipeline runs whole-document conversions: PDF or text upload in,
// workbook out. Converter does the work synchronously; Orchestrator queues
// it for background workers.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docsheet/internal/chunker"
	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/generate"
	"github.com/dgallion1/docsheet/internal/parser"
	"github.com/dgallion1/docsheet/internal/sheet"
	"github.com/dgallion1/docsheet/internal/structure"
)

// ErrUnreadable wraps failures to open or parse the upload itself.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoContent         = errors.New("no extractable content")
	ErrGenerationFailed  = errors.New("content generation failed")
	ErrUnreadable        = errors.New("unreadable document")
)

type Assembler interface {
	Assemble(ctx context.Context, data []byte) (*document.Bundle, error)
}

type Generator interface {
	Generate(ctx context.Context, text, topic string) generate.Result
	Document(ctx context.Context, text string, outline document.Outline) generate.Result
}

type WorkbookWriter interface {
	Write(rows []document.ContentRow, items []document.Item, meta *sheet.Metadata) ([]byte, error)
}

type Input struct {
	Filename        string
	Data            []byte
	IncludeMetadata bool
	// RowsOnly stops after generation; Output.Workbook stays nil.
	RowsOnly bool
	// OnPhase, if set, is called as the conversion enters each phase.
	OnPhase func(JobStatus)
}

type Output struct {
	// Bundle is nil for text documents.
	Bundle   *document.Bundle
	Rows     []document.ContentRow
	Workbook []byte
	Filename string
	// Degraded lists what went wrong without stopping the conversion.
	Degraded []string
}

type Converter struct {
	assembler Assembler
	gen       Generator
	writer    WorkbookWriter
	log       *slog.Logger
	now       func() time.Time
}

func NewConverter(a Assembler, g Generator, w WorkbookWriter, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{assembler: a, gen: g, writer: w, log: log, now: time.Now}
}

// IsPDF reports whether filename is handled by the PDF path.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// Supported reports whether Convert accepts filename.
func Supported(filename string) bool {
	return IsPDF(filename) || parser.IsSupportedExtension(filename)
}

// OutputName is the workbook download name for an upload.
func OutputName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "document"
	}
	return base + "_content.xlsx"
}

// Convert extracts, generates and writes one document. Only unreadable
// input or a total generation failure is returned as an error.
func (c *Converter) Convert(ctx context.Context, in Input) (*Output, error) {
	phase := in.OnPhase
	if phase == nil {
		phase = func(JobStatus) {}
	}
	if !Supported(in.Filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(in.Filename))
	}
	log := c.log.With("filename", in.Filename)
	out := &Output{Filename: OutputName(in.Filename)}

	phase(StatusExtracting)
	var (
		res   generate.Result
		items []document.Item
		meta  map[string]any
	)
	if IsPDF(in.Filename) {
		if c.assembler == nil {
			return nil, fmt.Errorf("%w: pdf support not configured", ErrUnsupportedFormat)
		}
		bundle, err := c.assembler.Assemble(ctx, in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		if strings.TrimSpace(bundle.MergedText) == "" {
			return nil, ErrNoContent
		}
		out.Bundle = bundle
		items = bundle.Items
		if n := bundle.PageErrors(); n > 0 {
			out.Degraded = append(out.Degraded, fmt.Sprintf("%d page(s) failed text extraction", n))
		}
		if n := len(bundle.Skipped); n > 0 {
			out.Degraded = append(out.Degraded, fmt.Sprintf("%d image(s) skipped", n))
		}
		meta = bundleMetadata(in.Filename, bundle)

		phase(StatusGenerating)
		res = c.gen.Document(ctx, bundle.MergedText, bundle.Structure)
	} else {
		tree, err := c.parse(in)
		if err != nil {
			return nil, err
		}
		meta = map[string]any{"filename": in.Filename, "title": tree.Title}

		// Heading-less text gets its outline inferred, like PDF page text.
		if !tree.HasHeadings() {
			text := tree.Text()
			if strings.TrimSpace(text) == "" {
				return nil, ErrNoContent
			}
			outline := structure.Infer(text)
			meta["chapters"] = len(outline.Chapters)
			meta["sections"] = len(outline.Sections)
			phase(StatusGenerating)
			res = c.gen.Document(ctx, text, outline)
		} else {
			sections := chunker.Sections(tree)
			if len(sections) == 0 {
				return nil, ErrNoContent
			}
			meta["sections"] = len(sections)
			phase(StatusGenerating)
			res = c.generateSections(ctx, sections)
		}
	}

	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, res.Error)
	}
	if res.Error != "" {
		out.Degraded = append(out.Degraded, res.Error)
	}
	out.Rows = res.Items
	if in.RowsOnly {
		log.Info("content generated", "rows", len(out.Rows), "degraded", len(out.Degraded))
		return out, nil
	}

	phase(StatusWriting)
	var wm *sheet.Metadata
	if in.IncludeMetadata {
		now := c.now()
		meta["processed_at"] = now.Format(time.RFC3339)
		wm = &sheet.Metadata{Values: meta, GeneratedAt: now}
		if out.Bundle != nil {
			bd := out.Bundle.Breakdown
			wm.Breakdown = &bd
		}
	}
	wb, err := c.writer.Write(out.Rows, items, wm)
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	out.Workbook = wb

	log.Info("conversion complete", "rows", len(out.Rows), "items", len(items), "degraded", len(out.Degraded), "bytes", len(wb))
	return out, nil
}

func (c *Converter) parse(in Input) (*document.Tree, error) {
	p, err := parser.ForFile(in.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	tree, err := p.Parse(bytes.NewReader(in.Data), in.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return tree, nil
}

// generateSections runs one generation per section, stopping early only
// when ctx ends.
func (c *Converter) generateSections(ctx context.Context, sections []chunker.Section) generate.Result {
	res := generate.Result{Items: []document.ContentRow{}}
	var notes []string
	for _, s := range sections {
		if ctx.Err() != nil {
			notes = append(notes, "stopped early: "+ctx.Err().Error())
			break
		}
		topic := s.Topic
		if topic == "" {
			topic = generate.DefaultTopic
		}
		r := c.gen.Generate(ctx, s.Text, topic)
		res.Items = append(res.Items, r.Items...)
		if r.Error != "" {
			notes = append(notes, topic+": "+r.Error)
		}
	}
	res.Success = len(res.Items) > 0
	res.Error = strings.Join(notes, "; ")
	return res
}

func bundleMetadata(filename string, b *document.Bundle) map[string]any {
	chapters := make([]string, 0, len(b.Structure.Chapters))
	for _, h := range b.Structure.Chapters {
		chapters = append(chapters, h.Title)
	}
	return map[string]any{
		"filename":          filename,
		"total_pages":       b.TotalPages,
		"pages_with_text":   b.PagesWithText(),
		"tables":            b.Breakdown.Tables,
		"formulas":          b.Breakdown.Formulas,
		"diagrams":          b.Breakdown.Diagrams,
		"general_images":    b.Breakdown.GeneralImages,
		"chapters":          chapters,
		"sections":          len(b.Structure.Sections),
		"extraction_errors": b.PageErrors(),
	}
}
