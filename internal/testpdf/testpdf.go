// Package testpdf builds small PDF fixtures for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Page describes one fixture page: text lines and optional images.
type Page struct {
	Lines  []string
	Images []image.Image
}

// Build renders pages into a PDF.
func Build(pages ...Page) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)

	imgN := 0
	for _, p := range pages {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		for _, line := range p.Lines {
			pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
		}
		y := pdf.GetY() + 5
		for _, img := range p.Images {
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return nil, err
			}
			name := fmt.Sprintf("img%d", imgN)
			imgN++
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, &buf)
			pdf.ImageOptions(name, 10, y, 60, 0, false, opts, 0, "")
			y += 65
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Text builds a one-page PDF from newline-separated text.
func Text(text string) ([]byte, error) {
	return Build(Page{Lines: strings.Split(text, "\n")})
}

// Grid draws n horizontal and n vertical 2px rules on a white square,
// which reads as a ruled table.
func Grid(size, n int) *image.Gray {
	g := Blank(size, size)
	margin := size / 15
	step := (size - 2*margin) / (n - 1)
	for k := 0; k < n; k++ {
		pos := margin + k*step
		for t := 0; t < 2; t++ {
			for i := margin; i <= size-margin; i++ {
				g.SetGray(i, pos+t, color.Gray{0})
				g.SetGray(pos+t, i, color.Gray{0})
			}
		}
	}
	return g
}

// Blank is a white grayscale image.
func Blank(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}
