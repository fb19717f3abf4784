package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini is the Google Gemini backend.
type Gemini struct {
	client *genai.Client
	opts   Options
}

func NewGemini(ctx context.Context, apiKey string, opts Options) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoBackend)
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: c, opts: opts}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, genai.NewContentFromText(prompt, genai.RoleUser))
}

func (g *Gemini) CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return g.generate(ctx, &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	})
}

func (g *Gemini) generate(ctx context.Context, content *genai.Content) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.opts.Temperature)),
	}
	if g.opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.opts.MaxTokens)
	}
	return withRetry(ctx, sleepCtx, func() (string, error) {
		res, err := g.client.Models.GenerateContent(ctx, g.opts.Model, []*genai.Content{content}, cfg)
		if err != nil {
			return "", classify(g.Name(), err)
		}
		text := strings.TrimSpace(res.Text())
		if text == "" {
			return "", fmt.Errorf("gemini: empty response")
		}
		return text, nil
	})
}
