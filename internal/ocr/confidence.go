package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoConfidence is returned by engines that cannot score their output.
var ErrNoConfidence = errors.New("engine does not report confidence")

// Confidence is a transcription with the engine's mean word confidence
// (0-100). Words scored at zero or below are dropped.
type Confidence struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	WordCount      int     `json:"word_count"`
	CharacterCount int     `json:"character_count"`
}

// Scorer is implemented by engines that can report per-word confidence.
type Scorer interface {
	Score(ctx context.Context, path string, opts Options) (Confidence, error)
}

// Score runs tesseract with hOCR output and averages the word confidences.
func (t *Tesseract) Score(ctx context.Context, path string, opts Options) (Confidence, error) {
	args := []string{path, "stdout"}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if opts.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(opts.PageSegMode))
	}
	args = append(args, "hocr")
	out, err := t.run(ctx, t.cmd, args...)
	if err != nil {
		return Confidence{}, fmt.Errorf("tesseract hocr %s: %w", path, err)
	}
	return ParseHOCR(bytes.NewReader(out))
}

// ParseHOCR reads ocrx_word spans and their x_wconf scores.
func ParseHOCR(r io.Reader) (Confidence, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Confidence{}, fmt.Errorf("parse hocr: %w", err)
	}
	var (
		words []string
		total float64
	)
	doc.Find(".ocrx_word").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		title, _ := s.Attr("title")
		conf, ok := wordConfidence(title)
		if text == "" || !ok || conf <= 0 {
			return
		}
		words = append(words, text)
		total += conf
	})

	full := strings.Join(words, " ")
	c := Confidence{
		Text:           Clean(full),
		WordCount:      len(words),
		CharacterCount: utf8.RuneCountInString(full),
	}
	if len(words) > 0 {
		c.Confidence = total / float64(len(words))
	}
	return c, nil
}

// wordConfidence extracts x_wconf from an hOCR title such as
// "bbox 36 92 96 116; x_wconf 93".
func wordConfidence(title string) (float64, bool) {
	for _, prop := range strings.Split(title, ";") {
		fields := strings.Fields(prop)
		if len(fields) == 2 && fields[0] == "x_wconf" {
			v, err := strconv.ParseFloat(fields[1], 64)
			return v, err == nil
		}
	}
	return 0, false
}
