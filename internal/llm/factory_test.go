// File: internal/llm/factory_test.go
package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/internal/config"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
)

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("openai provider", func(t *testing.T) {
		client, err := llm.NewClient(t.Context(), llm.Identity{Provider: llm.ProviderOpenAI, Name: "gpt-4o"}, "key", config.LLMConfig{}, logger)
		require.NoError(t, err)
		defer client.Close()

		assert.IsType(t, &llm.OpenAIClient{}, client)
		assert.Equal(t, llm.ProviderOpenAI, client.Provider())
	})

	t.Run("google provider", func(t *testing.T) {
		client, err := llm.NewClient(t.Context(), llm.Identity{Provider: llm.ProviderGoogle, Name: "flash-latest"}, "key", config.LLMConfig{}, logger)
		require.NoError(t, err)
		defer client.Close()

		assert.IsType(t, &llm.GeminiClient{}, client)
		assert.Equal(t, llm.ProviderGoogle, client.Provider())
	})

	t.Run("unknown provider fails without a compatible endpoint", func(t *testing.T) {
		_, err := llm.NewClient(t.Context(), llm.Identity{Provider: "acme", Name: "acme-1"}, "key", config.LLMConfig{}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
	})

	t.Run("unknown provider routes through a configured compatible endpoint", func(t *testing.T) {
		cfg := config.LLMConfig{OpenAIBaseURL: "http://localhost:11434/v1"}
		client, err := llm.NewClient(t.Context(), llm.Identity{Provider: "acme", Name: "acme-1"}, "key", cfg, logger)
		require.NoError(t, err)
		defer client.Close()

		assert.IsType(t, &llm.OpenAIClient{}, client)
	})

	t.Run("missing key fails", func(t *testing.T) {
		_, err := llm.NewClient(t.Context(), llm.Identity{Provider: llm.ProviderOpenAI, Name: "gpt-4o"}, "", config.LLMConfig{}, logger)
		require.Error(t, err)
	})
}
