package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is the OpenAI chat-completions backend.
type OpenAI struct {
	client *openai.Client
	opts   Options
}

func NewOpenAI(apiKey string, opts Options) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNoBackend)
	}
	return &OpenAI{client: openai.NewClient(apiKey), opts: opts}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

func (o *OpenAI) CompleteImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return o.chat(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh}},
		},
	})
}

func (o *OpenAI) chat(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.opts.Model,
		Messages:    []openai.ChatCompletionMessage{msg},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: float32(o.opts.Temperature),
	}
	return withRetry(ctx, sleepCtx, func() (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classify(o.Name(), err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai: no choices in response")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}
