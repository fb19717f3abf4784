package llm

import (
	"context"
	"fmt"

	"github.com/dgallion1/docsheet/internal/config"
)

// Open builds the named backend from configuration. A backend with no key
// returns an error wrapping ErrNoBackend.
func Open(ctx context.Context, name string, cfg config.LLMConfig) (VisionCompleter, error) {
	opts := Options{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	switch name {
	case "gemini":
		opts.Model = cfg.GeminiModel
		return NewGemini(ctx, cfg.GeminiAPIKey, opts)
	case "openai":
		opts.Model = cfg.OpenAIModel
		return NewOpenAI(cfg.OpenAIAPIKey, opts)
	case "claude":
		opts.Model = cfg.AnthropicModel
		return NewClaude(cfg.AnthropicAPIKey, opts)
	case "mistral":
		opts.Model = cfg.MistralModel
		return NewMistral(cfg.MistralAPIKey, opts)
	case "ollama":
		opts.Model = cfg.OllamaModel
		return NewOllama(cfg.OllamaHost, opts)
	case "":
		return nil, ErrNoBackend
	}
	return nil, fmt.Errorf("unknown LLM backend %q", name)
}

// OpenVision picks the configured vision backend, or the first backend
// with credentials when none is named.
func OpenVision(ctx context.Context, cfg config.LLMConfig) (VisionCompleter, error) {
	if cfg.Vision != "" {
		return Open(ctx, cfg.Vision, cfg)
	}
	for _, name := range []string{cfg.Primary, cfg.Secondary, "gemini", "openai", "claude", "mistral", "ollama"} {
		if name != "" && cfg.HasKey(name) {
			return Open(ctx, name, cfg)
		}
	}
	return nil, ErrNoBackend
}
