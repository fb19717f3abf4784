// Package ocr turns images on disk into text.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docsheet/internal/llm"
)

// Page segmentation modes passed through to the engine.
const (
	PSMAuto  = 3
	PSMBlock = 6
)

type Options struct {
	Language    string
	PageSegMode int
}

// Engine recognizes the text in one image file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string, opts Options) (string, error)
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Tesseract shells out to the tesseract CLI.
type Tesseract struct {
	cmd string
	run Runner
}

func NewTesseract(cmd string) *Tesseract {
	if cmd == "" {
		cmd = "tesseract"
	}
	return &Tesseract{cmd: cmd, run: execRunner}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, path string, opts Options) (string, error) {
	args := []string{path, "stdout"}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if opts.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(opts.PageSegMode))
	}
	out, err := t.run(ctx, t.cmd, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w", path, err)
	}
	return string(out), nil
}

const transcribePrompt = `Transcribe all readable text in this image exactly as it appears.
Preserve line breaks. Return only the text, with no commentary. If there is no text, return nothing.`

// Vision asks a vision-capable LLM to transcribe the image.
type Vision struct {
	llm llm.VisionCompleter
}

func NewVision(v llm.VisionCompleter) *Vision {
	return &Vision{llm: v}
}

func (v *Vision) Name() string { return "vision" }

func (v *Vision) Recognize(ctx context.Context, path string, opts Options) (string, error) {
	if v.llm == nil {
		return "", llm.ErrNoBackend
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	prompt := transcribePrompt
	if opts.Language != "" && opts.Language != "eng" {
		prompt += "\nThe text language code is " + opts.Language + "."
	}
	out, err := v.llm.CompleteImage(ctx, prompt, data, http.DetectContentType(data))
	if err != nil {
		return "", fmt.Errorf("vision transcribe: %w", err)
	}
	return llm.StripCodeFence(out), nil
}

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// Clean collapses runs of spaces, trims each line and limits blank lines
// to one.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRun.ReplaceAllString(s, "\n\n"))
}
