// File: internal/llm/factory.go
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/internal/config"
)

// NewClient is a factory function that creates a Client for the given model
// identity. Providers without a native client here are served through the
// OpenAI-compatible path when a base URL override points at them.
func NewClient(ctx context.Context, id Identity, apiKey string, cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch id.Provider {
	case ProviderGoogle:
		return NewGeminiClient(ctx, id.Name, apiKey, cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(id.Name, apiKey, cfg, logger)
	default:
		if cfg.OpenAIBaseURL != "" {
			logger.Info("Serving provider through OpenAI-compatible endpoint",
				zap.String("provider", id.Provider),
				zap.String("base_url", cfg.OpenAIBaseURL),
			)
			return NewOpenAIClient(id.Name, apiKey, cfg, logger)
		}
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", id.Provider, ProviderGoogle, ProviderOpenAI)
	}
}
