package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/store"
)

// NewProvider creates a Provider from configuration.
// The backend is wrapped as: caller → pacing → rate limit → retry →
// timeout → logging → base, so every attempt is logged and timed
// separately while pacing and rate limiting apply once per request.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := newBaseProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg, eventRepo, logger), nil
}

// Wrap applies the decorator chain described on NewProvider to base.
func Wrap(base Provider, cfg Config, eventRepo store.EventRepo, logger *zap.Logger) Provider {
	p := WithLogging(base, cfg.Provider, eventRepo, logger)
	p = WithTimeout(p, cfg.Timeout)
	p = WithRetry(p, cfg.Retry)
	p = WithRateLimit(p, cfg.RateLimit)
	p = WithPacing(p, cfg.Wait)
	return p
}

func newBaseProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderVLLM:
		return NewVLLMProvider(VLLMConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderAnthropic:
		return NewAnthropicProvider(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderGemini:
		return NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderOpenRouter:
		return NewOpenRouterProvider(OpenRouterConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderOllama:
		return NewOllamaProvider(OllamaConfig{ServerURL: cfg.BaseURL, Model: cfg.Model})
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
