// Package llm wraps the text-completion backends behind one interface and
// routes calls between a rate-limited primary and a fallback secondary.
package llm

import (
	"context"
	"regexp"
	"strings"
)

// Completer turns a prompt into a completion.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// VisionCompleter also accepts an image alongside the prompt.
type VisionCompleter interface {
	Completer
	CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Options are shared generation settings for every backend.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFence removes a single markdown code fence wrapping s.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// FindJSON returns the first balanced JSON object or array in s, or "".
func FindJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open := s[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
