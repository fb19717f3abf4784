package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChain adapts a langchaingo model. Mistral and Ollama are served this
// way.
type LangChain struct {
	name string
	llm  llms.Model
	opts Options
	// dataURLImages sends images as data URLs instead of raw bytes.
	dataURLImages bool
}

func NewMistral(apiKey string, opts Options) (*LangChain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mistral: %w", ErrNoBackend)
	}
	m, err := mistral.New(mistral.WithModel(opts.Model), mistral.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("mistral client: %w", err)
	}
	return &LangChain{name: "mistral", llm: m, opts: opts, dataURLImages: true}, nil
}

func NewOllama(host string, opts Options) (*LangChain, error) {
	if host == "" {
		return nil, fmt.Errorf("ollama: %w", ErrNoBackend)
	}
	m, err := ollama.New(ollama.WithModel(opts.Model), ollama.WithServerURL(host))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &LangChain{name: "ollama", llm: m, opts: opts}, nil
}

func (l *LangChain) Name() string { return l.name }

func (l *LangChain) Complete(ctx context.Context, prompt string) (string, error) {
	return l.generate(ctx, llms.TextPart(prompt))
}

func (l *LangChain) CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var img llms.ContentPart = llms.BinaryPart(mimeType, image)
	if l.dataURLImages {
		img = llms.ImageURLPart("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image))
	}
	return l.generate(ctx, img, llms.TextPart(prompt))
}

func (l *LangChain) generate(ctx context.Context, parts ...llms.ContentPart) (string, error) {
	var callOpts []llms.CallOption
	if l.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(l.opts.MaxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(l.opts.Temperature))

	return withRetry(ctx, sleepCtx, func() (string, error) {
		resp, err := l.llm.GenerateContent(ctx, []llms.MessageContent{
			{Role: llms.ChatMessageTypeHuman, Parts: parts},
		}, callOpts...)
		if err != nil {
			return "", classify(l.name, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s: no choices in response", l.name)
		}
		return strings.TrimSpace(resp.Choices[0].Content), nil
	})
}
