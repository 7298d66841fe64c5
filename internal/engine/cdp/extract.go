// File: internal/engine/cdp/extract.go
package cdp

import (
	"context"
	"fmt"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// Extract reads the page, asks the model for data in the contract's shape
// and coerces the reply onto the contract.
func (s *Session) Extract(ctx context.Context, instruction string, contract *schema.Contract) (map[string]any, error) {
	text, err := s.pageText(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.complete(ctx, llm.Request{
		System:          extractSystemPrompt,
		Prompt:          extractPrompt(text, instruction),
		Contract:        contract,
		Temperature:     s.engine.llmCfg.Temperature,
		MaxOutputTokens: s.engine.llmCfg.MaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}

	value, err := llm.ParseJSON[map[string]any](raw)
	if err != nil {
		return nil, fmt.Errorf("reading extraction response: %w", err)
	}
	data, err := schema.Coerce(contract, *value)
	if err != nil {
		return nil, fmt.Errorf("shaping extracted data: %w", err)
	}
	s.emit(schemas.LogCategoryAction, fmt.Sprintf("extracted %d fields", len(data)), levelProgress, nil)
	return data, nil
}
