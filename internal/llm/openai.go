// File: internal/llm/openai.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pagepilot-ai/pagepilot/internal/config"
)

// DefaultOpenAIBaseURL is used when no base URL override is configured.
// Any OpenAI-compatible endpoint (Azure, gateways, local servers) can be
// substituted through config.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient serves OpenAI-family models over the chat completions API.
// Requests go over raw HTTP so that compatible gateways with slight format
// variations keep working; message payloads are built with the official
// SDK's param types.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	cfg        config.LLMConfig
}

// -- Chat Completions Response Structures (Internal to this file) --

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(model, apiKey string, cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openAI API key is required")
	}

	baseURL := cfg.OpenAIBaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	rps := rate.Limit(cfg.RequestsPerSecond)
	if rps <= 0 {
		rps = rate.Inf
	}

	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		limiter: rate.NewLimiter(rps, 1),
		logger:  logger.Named("llm.openai"),
		cfg:     cfg,
	}, nil
}

// Provider reports the canonical provider tag.
func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

// Generate sends the request to the chat completions endpoint and returns
// the generated content, retrying transient failures with exponential
// backoff.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(c.buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.RetryMaxElapsed
	b.MaxInterval = c.cfg.RetryMaxInterval

	var out *Response

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload chatCompletionResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(payload.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("chat completions API returned no choices"))
		}

		choice := payload.Choices[0]
		if choice.Message.Content == "" {
			if choice.FinishReason == "content_filter" {
				return backoff.Permanent(fmt.Errorf("chat completions API blocked the request (Reason: %s)", choice.FinishReason))
			}
			return fmt.Errorf("chat completions API returned empty content (Reason: %s)", choice.FinishReason)
		}

		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", payload.Usage.PromptTokens),
			zap.Int("completion_tokens", payload.Usage.CompletionTokens),
			zap.Int("total_tokens", payload.Usage.TotalTokens),
		)

		out = &Response{
			Text: choice.Message.Content,
			Usage: Usage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				TotalTokens:      payload.Usage.TotalTokens,
			},
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return out, nil
}

// Close releases idle transport connections.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OpenAIClient) buildRequestBody(req Request) map[string]any {
	system := req.System
	if req.Contract != nil {
		schemaJSON, err := json.Marshal(req.Contract.JSONSchema())
		if err == nil {
			clause := "Respond with a single JSON object conforming to this JSON Schema:\n" + string(schemaJSON)
			if system == "" {
				system = clause
			} else {
				system = system + "\n\n" + clause
			}
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxOutputTokens > 0 {
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.Contract != nil {
		// json_object rather than json_schema: the widest set of
		// compatible gateways understands it, and the schema rides in
		// the system message either way.
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

func (c *OpenAIClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Chat completions API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("chat completions API error: status %d, body: %s", statusCode, truncateString(string(body), 500))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
