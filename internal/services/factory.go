package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/hackslash/internal/config"
)

// NewFromConfig builds the provider named by cfg.LLMProvider. The returned
// close func releases provider resources and is never nil. Provider "mock"
// is handled by callers that know which scripted mock they want.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (LLMService, func() error, error) {
	noop := func() error { return nil }

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger), noop, nil
	case config.ProviderAnthropic:
		return NewAnthropicService(cfg.AnthropicAPIKey, "", logger), noop, nil
	case config.ProviderGemini:
		g, err := NewGeminiService(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case config.ProviderVenice:
		return NewVeniceService(cfg.VeniceAPIKey, "", logger), noop, nil
	case config.ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, logger), noop, nil
	case config.ProviderMock:
		return NewMockLLMAPI(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}
