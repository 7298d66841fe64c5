// File: internal/engine/cdp/observe.go
package cdp

import (
	"context"
	"fmt"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// observation is the model's proposed action plan.
type observation struct {
	Actions []schemas.ObservedAction `json:"actions"`
}

// observationContract shapes the analyst's structured output.
func observationContract() *schema.Contract {
	return schema.Object(map[string]*schema.Contract{
		"actions": schema.Array(schema.Object(map[string]*schema.Contract{
			"description": schema.String(),
			"selector":    schema.String(),
			"method":      schema.String(),
			"arguments":   schema.Array(schema.String()).AsOptional(),
		})),
	})
}

// Observe proposes candidate actions for the instruction without touching
// the page. The model's plan is passed through verbatim.
func (s *Session) Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.complete(ctx, llm.Request{
		System:          observeSystemPrompt,
		Prompt:          observePrompt(snap, instruction),
		Contract:        observationContract(),
		Temperature:     s.engine.llmCfg.Temperature,
		MaxOutputTokens: s.engine.llmCfg.MaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}

	obs, err := llm.ParseJSON[observation](raw)
	if err != nil {
		return nil, fmt.Errorf("reading observation response: %w", err)
	}
	s.emit(schemas.LogCategoryAction, fmt.Sprintf("proposed %d candidate actions", len(obs.Actions)), levelProgress, nil)
	return obs.Actions, nil
}
