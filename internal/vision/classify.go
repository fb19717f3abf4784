// Package vision classifies embedded images and extracts typed content
// from them.
package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"regexp"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/imaging"
)

// LineCounter counts straight line segments in an image.
type LineCounter interface {
	CountLines(img image.Image) int
}

// HoughLines counts segments with Canny edges and a probabilistic Hough
// transform on a downscaled grayscale copy.
type HoughLines struct {
	MaxSide   int
	Low, High float64
	Params    imaging.HoughParams
}

func DefaultLines() HoughLines {
	return HoughLines{MaxSide: 1000, Low: 50, High: 150, Params: imaging.DefaultHough}
}

func (h HoughLines) CountLines(img image.Image) int {
	g := imaging.Gray(imaging.Fit(img, h.MaxSide))
	return len(imaging.HoughSegments(imaging.Canny(g, h.Low, h.High), h.Params))
}

// QuickReader is a fast OCR pass over an image file.
type QuickReader interface {
	Quick(ctx context.Context, path string) (string, error)
}

// MathRule is one entry of the formula cascade.
type MathRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// MathRules are evaluated in order; the first match classifies the image
// as a formula.
var MathRules = []MathRule{
	{"equality", regexp.MustCompile(`[A-Za-z0-9)\]]\s*[=≠≈≤≥<>]\s*[-+(A-Za-z0-9√]`)},
	{"exponent", regexp.MustCompile(`[A-Za-z0-9)]\s*\^\s*[-A-Za-z0-9({]|[²³⁴⁵ⁿ]`)},
	{"latex", regexp.MustCompile(`\\(frac|sqrt|sum|int|prod|lim|alpha|beta|gamma|delta|theta|lambda|mu|sigma|pi|infty|cdot|times|partial)\b`)},
	{"subscript", regexp.MustCompile(`\b[A-Za-z]_\{?[A-Za-z0-9]`)},
	{"symbols", regexp.MustCompile(`[∑∫∏√∞±∂∆∇πθλμσ]`)},
	{"vocabulary", regexp.MustCompile(`(?i)\b(equation|formula|theorem|derivative|integral|logarithm|sqrt|sin|cos|tan|log|lim)\b`)},
}

// MatchMath returns the name of the first rule matching text.
func MatchMath(text string) (string, bool) {
	for _, r := range MathRules {
		if r.Pattern.MatchString(text) {
			return r.Name, true
		}
	}
	return "", false
}

// Classifier labels an image as table, formula or general.
type Classifier struct {
	lines     LineCounter
	ocr       QuickReader
	threshold int
	log       *slog.Logger
}

func NewClassifier(lines LineCounter, ocr QuickReader, threshold int, log *slog.Logger) *Classifier {
	if lines == nil {
		lines = DefaultLines()
	}
	if threshold <= 0 {
		threshold = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{lines: lines, ocr: ocr, threshold: threshold, log: log}
}

// Classify never fails: detection errors and panics downgrade the result to
// General. path is the image on disk for the OCR pass.
func (c *Classifier) Classify(ctx context.Context, img image.Image, path string) (ct document.ContentType) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("image classification panicked", "path", path, "panic", fmt.Sprint(r))
			ct = document.General
		}
	}()

	if n := c.lines.CountLines(img); n >= c.threshold {
		c.log.Debug("classified as table", "path", path, "lines", n)
		return document.Table
	}
	if c.ocr == nil {
		return document.General
	}
	text, err := c.ocr.Quick(ctx, path)
	if err != nil {
		c.log.Warn("quick ocr failed", "path", path, "error", err)
		return document.General
	}
	if rule, ok := MatchMath(text); ok {
		c.log.Debug("classified as formula", "path", path, "rule", rule)
		return document.Formula
	}
	return document.General
}
