package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/llm"
)

// Input is one image ready for extraction.
type Input struct {
	Page int
	Path string // image file on disk, read by OCR
	Data []byte // encoded image sent to vision backends
	MIME string
}

// Outcome is the result of extracting one image: an item, or a reason the
// image was skipped. Type is the classification the image ended up under.
type Outcome struct {
	Type   document.ContentType
	Page   int
	Item   document.Item
	Reason string
}

func Ok(ct document.ContentType, item document.Item) Outcome {
	return Outcome{Type: ct, Page: item.PageNumber(), Item: item}
}

// Skip records why the image on page could not be extracted.
func Skip(ct document.ContentType, page int, format string, args ...any) Outcome {
	return Outcome{Type: ct, Page: page, Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) OK() bool { return o.Item != nil }

// TextReader is the full-quality OCR pass.
type TextReader interface {
	Text(ctx context.Context, path string) (string, error)
}

type ExtractorOptions struct {
	// DescribeImages sends general images with little text to the
	// diagram prompt.
	DescribeImages       bool
	DiagramTextThreshold int
}

// Extractor routes an image to the strategy for its content type.
type Extractor struct {
	vision llm.VisionCompleter
	ocr    TextReader
	opts   ExtractorOptions
	log    *slog.Logger
}

// NewExtractor accepts a nil vision backend; structured extraction then
// falls back to OCR text.
func NewExtractor(vision llm.VisionCompleter, ocr TextReader, opts ExtractorOptions, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{vision: vision, ocr: ocr, opts: opts, log: log}
}

// Extract never returns an error; failures become a Skip outcome tagged
// with ct.
func (e *Extractor) Extract(ctx context.Context, in Input, ct document.ContentType) Outcome {
	switch ct {
	case document.Table:
		return e.table(ctx, in)
	case document.Formula:
		return e.formula(ctx, in)
	case document.Diagram:
		return e.diagram(ctx, in)
	default:
		return e.general(ctx, in)
	}
}

func (e *Extractor) table(ctx context.Context, in Input) Outcome {
	if e.vision == nil {
		return e.ocrFallback(ctx, in, document.Table)
	}
	raw, err := e.vision.CompleteImage(ctx, tablePrompt, in.Data, in.MIME)
	if err != nil {
		return Skip(document.Table, in.Page, "table extraction: %v", err)
	}
	item, err := ParseTable(raw)
	if err != nil {
		e.log.Warn("table response not structured, keeping text", "page", in.Page, "error", err)
		return Ok(document.Table, document.TextItem{Page: in.Page, Text: strings.TrimSpace(raw), Source: document.Table})
	}
	item.Page = in.Page
	return Ok(document.Table, item)
}

func (e *Extractor) formula(ctx context.Context, in Input) Outcome {
	if e.vision == nil {
		text, err := e.readText(ctx, in)
		if err != nil {
			return Skip(document.Formula, in.Page, "formula ocr: %v", err)
		}
		if text == "" {
			return Skip(document.Formula, in.Page, "no text recognized")
		}
		return Ok(document.Formula, document.FormulaItem{Page: in.Page, Description: text})
	}
	raw, err := e.vision.CompleteImage(ctx, formulaPrompt, in.Data, in.MIME)
	if err != nil {
		return Skip(document.Formula, in.Page, "formula extraction: %v", err)
	}
	item, ok := ParseFormula(raw)
	if !ok {
		return Skip(document.Formula, in.Page, "empty formula response")
	}
	item.Page = in.Page
	return Ok(document.Formula, item)
}

func (e *Extractor) diagram(ctx context.Context, in Input) Outcome {
	if e.vision == nil {
		return Skip(document.Diagram, in.Page, "no vision backend")
	}
	raw, err := e.vision.CompleteImage(ctx, diagramPrompt, in.Data, in.MIME)
	if err != nil {
		return Skip(document.Diagram, in.Page, "diagram description: %v", err)
	}
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return Skip(document.Diagram, in.Page, "empty diagram description")
	}
	return Ok(document.Diagram, document.DiagramItem{Page: in.Page, Description: desc})
}

func (e *Extractor) general(ctx context.Context, in Input) Outcome {
	text, err := e.readText(ctx, in)
	if err != nil {
		return Skip(document.General, in.Page, "ocr: %v", err)
	}
	if e.opts.DescribeImages && e.vision != nil && len([]rune(text)) < e.opts.DiagramTextThreshold {
		if out := e.diagram(ctx, in); out.OK() {
			return out
		}
	}
	if text == "" {
		return Skip(document.General, in.Page, "no text recognized")
	}
	return Ok(document.General, document.TextItem{Page: in.Page, Text: text, Source: document.General})
}

func (e *Extractor) ocrFallback(ctx context.Context, in Input, ct document.ContentType) Outcome {
	text, err := e.readText(ctx, in)
	if err != nil {
		return Skip(ct, in.Page, "ocr: %v", err)
	}
	if text == "" {
		return Skip(ct, in.Page, "no text recognized")
	}
	return Ok(ct, document.TextItem{Page: in.Page, Text: text, Source: ct})
}

func (e *Extractor) readText(ctx context.Context, in Input) (string, error) {
	if e.ocr == nil {
		return "", errors.New("no OCR engine")
	}
	return e.ocr.Text(ctx, in.Path)
}

type tableJSON struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
	Notes   string           `json:"notes"`
}

// ParseTable decodes a table response, tolerating code fences and
// surrounding prose.
func ParseTable(raw string) (document.TableItem, error) {
	body := llm.StripCodeFence(raw)
	var t tableJSON
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		found := llm.FindJSON(raw)
		if found == "" {
			return document.TableItem{}, fmt.Errorf("decode table: %w", err)
		}
		if err := json.Unmarshal([]byte(found), &t); err != nil {
			return document.TableItem{}, fmt.Errorf("decode table: %w", err)
		}
	}
	if len(t.Headers) == 0 && len(t.Rows) > 0 {
		for k := range t.Rows[0] {
			t.Headers = append(t.Headers, k)
		}
		sort.Strings(t.Headers)
	}
	if len(t.Headers) == 0 {
		return document.TableItem{}, errors.New("table has no headers")
	}

	item := document.TableItem{Headers: t.Headers, Notes: strings.TrimSpace(t.Notes)}
	for _, r := range t.Rows {
		row := make(map[string]string, len(t.Headers))
		for _, h := range t.Headers {
			if v, ok := r[h]; ok && v != nil {
				row[h] = strings.TrimSpace(fmt.Sprint(v))
			} else {
				row[h] = ""
			}
		}
		item.Rows = append(item.Rows, row)
	}
	return item, nil
}

var (
	labelRe = regexp.MustCompile(`(?im)^\s*\**\s*(latex|description|variables)\s*\**\s*:\s*\**`)
	// Shapes tried when the response has no LaTeX label.
	latexShapes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\$\$(.+?)\$\$`),
		regexp.MustCompile(`(?s)\\\[(.+?)\\\]`),
		regexp.MustCompile(`(?s)\\\((.+?)\\\)`),
		regexp.MustCompile(`\$([^$\n]+)\$`),
		regexp.MustCompile(`(?m)^.*\\[a-zA-Z]+\{.*$`),
	}
)

// ParseFormula reads LaTeX, description and variables from a response.
// Labels are preferred; otherwise common LaTeX delimiters are searched and
// the whole text becomes the description. ok is false for empty input.
func ParseFormula(raw string) (item document.FormulaItem, ok bool) {
	text := strings.TrimSpace(llm.StripCodeFence(raw))
	if text == "" {
		return item, false
	}

	fields := map[string]string{}
	locs := labelRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		key := strings.ToLower(text[loc[2]:loc[3]])
		fields[key] = strings.TrimSpace(text[loc[1]:end])
	}

	item.LaTeX = cleanLaTeX(fields["latex"])
	item.Description = fields["description"]
	item.Variables = fields["variables"]

	if item.LaTeX == "" {
		for _, re := range latexShapes {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				item.LaTeX = cleanLaTeX(m[1])
			} else {
				item.LaTeX = cleanLaTeX(m[0])
			}
			break
		}
	}
	if item.Description == "" && len(locs) == 0 {
		item.Description = text
	}
	if item.LaTeX == "" && item.Description == "" {
		item.Description = text
	}
	return item, true
}

func cleanLaTeX(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$$")
	s = strings.TrimSuffix(s, "$$")
	s = strings.Trim(s, "$`")
	return strings.TrimSpace(s)
}
