// File: internal/llm/llm.go

// Package llm provides the language-model client layer: identity derivation
// from upstream namespaces, provider-specific clients, and response parsing.
package llm

import (
	"context"

	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// Usage counts tokens consumed by a single generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request describes one generation call. When Contract is set the client
// must constrain the model to emit JSON conforming to it.
type Request struct {
	System          string
	Prompt          string
	Contract        *schema.Contract
	Temperature     float32
	MaxOutputTokens int32
}

// Response carries the generated text and the token accounting for it.
type Response struct {
	Text  string
	Usage Usage
}

// Client is a provider-agnostic generation client.
type Client interface {
	// Provider reports the canonical provider tag the client serves.
	Provider() string
	// Generate runs one generation call, honoring ctx for cancellation.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Close releases any resources held by the client.
	Close() error
}
