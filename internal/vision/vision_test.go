package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedLines int

func (f fixedLines) CountLines(image.Image) int { return int(f) }

type panicLines struct{}

func (panicLines) CountLines(image.Image) int { panic("bad image") }

type fakeOCR struct {
	quick, text string
	err         error
	quickCalls  int
}

func (f *fakeOCR) Quick(context.Context, string) (string, error) {
	f.quickCalls++
	return f.quick, f.err
}

func (f *fakeOCR) Text(context.Context, string) (string, error) { return f.text, f.err }

type fakeVision struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeVision) Name() string { return "fake" }
func (f *fakeVision) Complete(context.Context, string) (string, error) {
	return f.reply, f.err
}
func (f *fakeVision) CompleteImage(_ context.Context, prompt string, _ []byte, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func gridImage(size, n int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, size, size))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	step := size / (n + 1)
	for k := 1; k <= n; k++ {
		pos := k * step
		for i := 10; i < size-10; i++ {
			for t := 0; t < 2; t++ {
				g.SetGray(i, pos+t, color.Gray{0})
				g.SetGray(pos+t, i, color.Gray{0})
			}
		}
	}
	return g
}

func TestClassify_LineCountDecidesTable(t *testing.T) {
	ocr := &fakeOCR{quick: "x = y"}
	for _, n := range []int{10, 11, 50} {
		c := NewClassifier(fixedLines(n), ocr, 10, nil)
		assert.Equal(t, document.Table, c.Classify(context.Background(), nil, "a.png"), "lines=%d", n)
	}
	assert.Equal(t, 0, ocr.quickCalls, "table check runs before OCR")

	c := NewClassifier(fixedLines(9), ocr, 10, nil)
	assert.Equal(t, document.Formula, c.Classify(context.Background(), nil, "a.png"))
}

func TestClassify_RealGrid(t *testing.T) {
	c := NewClassifier(nil, &fakeOCR{}, 10, nil)
	assert.Equal(t, document.Table, c.Classify(context.Background(), gridImage(300, 6), "grid.png"))

	blank := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	assert.Equal(t, document.General, c.Classify(context.Background(), blank, "blank.png"))
}

func TestClassify_FailuresDowngradeToGeneral(t *testing.T) {
	c := NewClassifier(panicLines{}, &fakeOCR{quick: "a = b"}, 10, nil)
	assert.Equal(t, document.General, c.Classify(context.Background(), nil, "a.png"))

	c = NewClassifier(fixedLines(0), &fakeOCR{err: errors.New("ocr down")}, 10, nil)
	assert.Equal(t, document.General, c.Classify(context.Background(), nil, "a.png"))

	c = NewClassifier(fixedLines(0), nil, 10, nil)
	assert.Equal(t, document.General, c.Classify(context.Background(), nil, "a.png"))
}

func TestMatchMath_Order(t *testing.T) {
	cases := []struct{ text, want string }{
		{"y = mx + b", "equality"},
		{"x^2", "exponent"},
		{"area is r²", "exponent"},
		{`\frac{a}{b}`, "latex"},
		{"x_1 and x_2", "subscript"},
		{"∑ of terms", "symbols"},
		{"The quadratic equation", "vocabulary"},
		{`E = mc^2 and \sqrt{x}`, "equality"},
	}
	for _, tc := range cases {
		got, ok := MatchMath(tc.text)
		require.True(t, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
	_, ok := MatchMath("A photo of a cat on a mat")
	assert.False(t, ok)
}

func TestExtract_TableParsed(t *testing.T) {
	fv := &fakeVision{reply: "```json\n{\"headers\":[\"Name\",\"Age\"],\"rows\":[{\"Name\":\"Ann\",\"Age\":31},{\"Name\":\"Bo\"}],\"notes\":\" n \"}\n```"}
	e := NewExtractor(fv, nil, ExtractorOptions{}, nil)

	out := e.Extract(context.Background(), Input{Page: 2}, document.Table)
	require.True(t, out.OK())
	assert.Equal(t, document.Table, out.Type)
	tbl, ok := out.Item.(document.TableItem)
	require.True(t, ok)
	assert.Equal(t, 2, tbl.Page)
	assert.Equal(t, []string{"Name", "Age"}, tbl.Headers)
	assert.Equal(t, map[string]string{"Name": "Ann", "Age": "31"}, tbl.Rows[0])
	assert.Equal(t, map[string]string{"Name": "Bo", "Age": ""}, tbl.Rows[1])
	assert.Equal(t, "n", tbl.Notes)
}

func TestExtract_TableMalformedDegradesToText(t *testing.T) {
	fv := &fakeVision{reply: "Name | Age\nAnn | 31"}
	out := NewExtractor(fv, nil, ExtractorOptions{}, nil).Extract(context.Background(), Input{Page: 4}, document.Table)

	require.True(t, out.OK())
	assert.Equal(t, document.Table, out.Type)
	item, ok := out.Item.(document.TextItem)
	require.True(t, ok)
	assert.Equal(t, "Name | Age\nAnn | 31", item.Text)
	assert.Equal(t, document.Table, item.Source)
	assert.Equal(t, "[Table from page 4]: Name | Age\nAnn | 31", item.Line())
}

func TestExtract_BackendFailureSkips(t *testing.T) {
	fv := &fakeVision{err: errors.New("503")}
	e := NewExtractor(fv, &fakeOCR{text: "abc"}, ExtractorOptions{}, nil)
	for _, ct := range []document.ContentType{document.Table, document.Formula, document.Diagram} {
		out := e.Extract(context.Background(), Input{Page: 7}, ct)
		assert.False(t, out.OK(), ct)
		assert.Equal(t, ct, out.Type)
		assert.Equal(t, 7, out.Page, "skips carry the page")
		assert.NotEmpty(t, out.Reason)
	}
}

func TestExtract_Formula(t *testing.T) {
	fv := &fakeVision{reply: "LaTeX: E = mc^2\nDescription: Mass-energy equivalence.\nVariables: E energy; m mass; c speed of light"}
	out := NewExtractor(fv, nil, ExtractorOptions{}, nil).Extract(context.Background(), Input{Page: 3}, document.Formula)
	require.True(t, out.OK())
	f := out.Item.(document.FormulaItem)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, "E = mc^2", f.LaTeX)
	assert.Equal(t, "Mass-energy equivalence.", f.Description)
	assert.Equal(t, "E energy; m mass; c speed of light", f.Variables)
}

func TestParseFormula_Fallbacks(t *testing.T) {
	f, ok := ParseFormula("The identity is $$a^2 + b^2 = c^2$$ for right triangles.")
	require.True(t, ok)
	assert.Equal(t, "a^2 + b^2 = c^2", f.LaTeX)
	assert.Contains(t, f.Description, "right triangles")

	f, ok = ParseFormula("**LaTeX:** `\\frac{1}{2}`\n**Description:** one half")
	require.True(t, ok)
	assert.Equal(t, `\frac{1}{2}`, f.LaTeX)
	assert.Equal(t, "one half", f.Description)

	f, ok = ParseFormula("I cannot read this image.")
	require.True(t, ok)
	assert.Empty(t, f.LaTeX)
	assert.Equal(t, "I cannot read this image.", f.Description)

	_, ok = ParseFormula("   ")
	assert.False(t, ok)
}

func TestExtract_GeneralAndDescribe(t *testing.T) {
	ocr := &fakeOCR{text: "Fig 1"}
	e := NewExtractor(nil, ocr, ExtractorOptions{DescribeImages: true, DiagramTextThreshold: 20}, nil)
	out := e.Extract(context.Background(), Input{Page: 5}, document.General)
	require.True(t, out.OK())
	assert.Equal(t, document.General, out.Type)
	assert.Equal(t, "[Image from page 5]: Fig 1", out.Item.Line())

	fv := &fakeVision{reply: "A pump feeding two tanks."}
	e = NewExtractor(fv, ocr, ExtractorOptions{DescribeImages: true, DiagramTextThreshold: 20}, nil)
	out = e.Extract(context.Background(), Input{Page: 5}, document.General)
	require.True(t, out.OK())
	assert.Equal(t, document.Diagram, out.Type)
	assert.Equal(t, "[Diagram from page 5]: A pump feeding two tanks.", out.Item.Line())

	e = NewExtractor(nil, &fakeOCR{}, ExtractorOptions{}, nil)
	out = e.Extract(context.Background(), Input{Page: 5}, document.General)
	assert.False(t, out.OK())
}

func TestExtract_TableWithoutVisionUsesOCR(t *testing.T) {
	e := NewExtractor(nil, &fakeOCR{text: "a b\n1 2"}, ExtractorOptions{}, nil)
	out := e.Extract(context.Background(), Input{Page: 1}, document.Table)
	require.True(t, out.OK())
	assert.Equal(t, document.Table, out.Type)
	assert.Equal(t, document.Table, out.Item.(document.TextItem).Source)
}
