package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Claude is the Anthropic Messages backend.
type Claude struct {
	newMessage func(context.Context, anthropic.MessageNewParams, ...option.RequestOption) (*anthropic.Message, error)
	opts       Options
}

func NewClaude(apiKey string, opts Options) (*Claude, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrNoBackend)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Claude{newMessage: client.Messages.New, opts: opts}, nil
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Complete(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
}

func (c *Claude) CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return c.send(ctx, anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
		anthropic.NewTextBlock(prompt),
	))
}

func (c *Claude) send(ctx context.Context, msg anthropic.MessageParam) (string, error) {
	maxTokens := c.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.opts.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages:    []anthropic.MessageParam{msg},
	}
	return withRetry(ctx, sleepCtx, func() (string, error) {
		resp, err := c.newMessage(ctx, params)
		if err != nil {
			return "", classify(c.Name(), err)
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return "", fmt.Errorf("claude: no text content in response")
		}
		return strings.TrimSpace(b.String()), nil
	})
}
