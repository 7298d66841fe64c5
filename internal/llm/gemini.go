// File: internal/llm/gemini.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/pagepilot-ai/pagepilot/internal/config"
)

// GeminiClient serves Google-family models through the official GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
	cfg     config.LLMConfig
}

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, model, apiKey string, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	rps := rate.Limit(cfg.RequestsPerSecond)
	if rps <= 0 {
		rps = rate.Inf
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rps, 1),
		logger:  logger.Named("llm.gemini"),
		cfg:     cfg,
	}, nil
}

// Provider reports the canonical provider tag.
func (c *GeminiClient) Provider() string { return ProviderGoogle }

// Generate sends the request to the Gemini API and returns the generated
// content, retrying transient failures with exponential backoff.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	genCfg := c.buildGenerationConfig(req)

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.RetryMaxElapsed
	b.MaxInterval = c.cfg.RetryMaxInterval

	var out *Response

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if c.cfg.APITimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
			defer cancel()
		}

		startTime := time.Now()
		resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, genCfg)
		duration := time.Since(startTime)

		if err != nil {
			return c.classifyError(err)
		}

		text := resp.Text()
		if text == "" {
			return backoff.Permanent(fmt.Errorf("gemini API returned no text candidates"))
		}

		var usage Usage
		if meta := resp.UsageMetadata; meta != nil {
			usage = Usage{
				PromptTokens:     int(meta.PromptTokenCount),
				CompletionTokens: int(meta.CandidatesTokenCount),
				TotalTokens:      int(meta.TotalTokenCount),
			}
		}

		c.logger.Info("LLM generation complete (Gemini)",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
			zap.Int("total_tokens", usage.TotalTokens),
		)

		out = &Response{Text: text, Usage: usage}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return out, nil
}

// Close implements Client. The GenAI SDK client exposes no release method,
// so there is nothing to do.
func (c *GeminiClient) Close() error {
	return nil
}

func (c *GeminiClient) buildGenerationConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Contract != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Contract.GenAISchema()
	}
	return cfg
}

func (c *GeminiClient) classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("Gemini API returned error status",
			zap.Int("status", apiErr.Code),
			zap.String("message", apiErr.Message),
		)
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
			return err // Transient errors, retry.
		default:
			return backoff.Permanent(err) // Permanent errors.
		}
	}

	if errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}

	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}
