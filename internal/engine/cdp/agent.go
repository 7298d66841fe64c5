// File: internal/engine/cdp/agent.go
package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/engine"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// defaultMaxSteps bounds an agent run when the caller does not.
const defaultMaxSteps = 20

// agentDecision is the model's verdict for one agent step.
type agentDecision struct {
	Action        *pageAction `json:"action,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty"`
	TaskCompleted bool        `json:"taskCompleted"`
	Message       string      `json:"message,omitempty"`
}

// decisionContract shapes the agent's structured output.
func decisionContract() *schema.Contract {
	return schema.Object(map[string]*schema.Contract{
		"action":        actionContract().AsOptional(),
		"reasoning":     schema.String().AsOptional(),
		"taskCompleted": schema.Boolean(),
		"message":       schema.String().AsOptional(),
	})
}

// RunAgent drives a multi-step autonomous run toward task completion. The
// run stops when the model declares the task done, the step budget runs
// out, or too many consecutive steps fail. Success means the loop came to
// a clean stop; Completed means the model declared the task done.
func (s *Session) RunAgent(ctx context.Context, task engine.AgentTask) (*engine.AgentResult, error) {
	maxSteps := task.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	failureLimit := s.engine.cfg.AgentFailureLimit
	if failureLimit <= 0 {
		failureLimit = 3
	}

	result := &engine.AgentResult{}
	failures := 0

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if task.AutoScreenshot {
			s.captureScreenshot(ctx, step)
		}

		raw, err := s.complete(ctx, llm.Request{
			System:          agentSystemPrompt,
			Prompt:          agentPrompt(snap, task.Task, task.Context, result.Actions),
			Contract:        decisionContract(),
			Temperature:     s.engine.llmCfg.Temperature,
			MaxOutputTokens: s.engine.llmCfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("deciding step %d: %w", step, err)
		}

		decision, err := llm.ParseJSON[agentDecision](raw)
		if err != nil {
			failures++
			s.logger.Warn("Unparseable agent decision", zap.Int("step", step), zap.Error(err))
			if failures >= failureLimit {
				result.Message = fmt.Sprintf("aborted after %d consecutive failures: %v", failures, err)
				return result, nil
			}
			continue
		}

		// A completing decision may still carry one final action; execute
		// and record it before finishing so the trail stays truthful.
		var outcome string
		var execErr error
		acted := decision.Action != nil && decision.Action.Action != ""
		if acted {
			started := time.Now()
			outcome, execErr = s.executeAction(ctx, *decision.Action)
			action := engine.AgentAction{
				Type:          decision.Action.Action,
				Reasoning:     decision.Reasoning,
				TaskCompleted: decision.TaskCompleted,
				DurationMS:    time.Since(started).Milliseconds(),
			}
			if params, err := json.Marshal(decision.Action); err == nil {
				action.Parameters = params
			}
			if url, err := s.Location(ctx); err == nil {
				action.PageURL = url
			}
			result.Actions = append(result.Actions, action)
		}

		if decision.TaskCompleted {
			if execErr != nil {
				s.logger.Warn("Final agent action failed", zap.Int("step", step), zap.Error(execErr))
			}
			result.Success = true
			result.Completed = true
			result.Message = decision.Message
			if result.Message == "" {
				result.Message = "task completed"
			}
			return result, nil
		}

		if !acted {
			failures++
			s.logger.Warn("Agent decision carried no action", zap.Int("step", step))
			if failures >= failureLimit {
				result.Message = fmt.Sprintf("aborted after %d consecutive steps without an action", failures)
				return result, nil
			}
			continue
		}

		if execErr != nil {
			failures++
			s.emit(schemas.LogCategoryAction, fmt.Sprintf("step %d failed: %v", step, execErr), levelProgress, nil)
			s.logger.Warn("Agent step failed", zap.Int("step", step), zap.Error(execErr))
			if failures >= failureLimit {
				result.Message = fmt.Sprintf("aborted after %d consecutive failed actions, last: %v", failures, execErr)
				return result, nil
			}
			continue
		}

		failures = 0
		s.emit(schemas.LogCategoryAction, fmt.Sprintf("step %d: %s", step, outcome), levelProgress, nil)
	}

	result.Success = true
	result.Message = fmt.Sprintf("step budget of %d exhausted before completion", maxSteps)
	return result, nil
}

// captureScreenshot grabs a viewport screenshot and logs it with the image
// payload embedded as a data URL in the auxiliary. Capture failures are
// logged and swallowed: screenshots are telemetry, not control flow.
func (s *Session) captureScreenshot(ctx context.Context, step int) {
	var buf []byte
	if err := s.runActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.logger.Warn("Screenshot capture failed", zap.Int("step", step), zap.Error(err))
		return
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf)
	s.emit(schemas.LogCategoryScreenshot, fmt.Sprintf("screenshot before step %d", step), levelProgress, map[string]schemas.LogValue{
		"screenshot": {Value: dataURL, Type: "string"},
	})
}
