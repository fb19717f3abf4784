package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/dgallion1/docsheet/internal/chunker"
	"github.com/dgallion1/docsheet/internal/llm"
)

const analysisChars = 5000

// Analyze asks the backend for a free-form educational analysis of the
// start of text. Unlike Generate it has no templated fallback.
func (g *Generator) Analyze(ctx context.Context, text string) (string, error) {
	if !g.available() {
		return "", llm.ErrNoBackend
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text to analyze")
	}
	out, err := g.complete(ctx, g.opts.AnalyzeTimeout, buildAnalysisPrompt(chunker.Prefix(text, analysisChars)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.StripCodeFence(out)), nil
}
