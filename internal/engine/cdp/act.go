// File: internal/engine/cdp/act.go
package cdp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// pageAction is the one-step action vocabulary shared by the single-step
// planner and the agent loop.
type pageAction struct {
	Action   string `json:"action"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	URL      string `json:"url,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// actionContract shapes the planner's structured output.
func actionContract() *schema.Contract {
	return schema.Object(map[string]*schema.Contract{
		"action":   schema.String(),
		"selector": schema.String().AsOptional(),
		"value":    schema.String().AsOptional(),
		"url":      schema.String().AsOptional(),
		"reason":   schema.String().AsOptional(),
	})
}

// Act plans one browser action for the instruction and executes it.
func (s *Session) Act(ctx context.Context, instruction string) (string, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return "", err
	}

	raw, err := s.complete(ctx, llm.Request{
		System:          actSystemPrompt,
		Prompt:          actPrompt(snap, instruction),
		Contract:        actionContract(),
		Temperature:     s.engine.llmCfg.Temperature,
		MaxOutputTokens: s.engine.llmCfg.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	action, err := llm.ParseJSON[pageAction](raw)
	if err != nil {
		return "", fmt.Errorf("planning action for %q: %w", instruction, err)
	}

	result, err := s.executeAction(ctx, *action)
	if err != nil {
		return "", err
	}
	s.emit(schemas.LogCategoryAction, result, levelProgress, nil)
	return result, nil
}

// executeAction performs one planned action against the page and describes
// what happened.
func (s *Session) executeAction(ctx context.Context, action pageAction) (string, error) {
	switch action.Action {
	case "click":
		if action.Selector == "" {
			return "", fmt.Errorf("click action without a selector")
		}
		err := s.runActions(ctx,
			chromedp.ScrollIntoView(action.Selector, chromedp.ByQuery),
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.Click(action.Selector, chromedp.ByQuery),
		)
		if err != nil {
			return "", fmt.Errorf("clicking %q: %w", action.Selector, err)
		}
		return fmt.Sprintf("clicked %s", action.Selector), nil

	case "type":
		if action.Selector == "" {
			return "", fmt.Errorf("type action without a selector")
		}
		err := s.runActions(ctx,
			chromedp.ScrollIntoView(action.Selector, chromedp.ByQuery),
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.SendKeys(action.Selector, action.Value, chromedp.ByQuery),
		)
		if err != nil {
			return "", fmt.Errorf("typing into %q: %w", action.Selector, err)
		}
		return fmt.Sprintf("typed %d characters into %s", len(action.Value), action.Selector), nil

	case "select":
		if action.Selector == "" {
			return "", fmt.Errorf("select action without a selector")
		}
		if err := s.runActions(ctx, chromedp.SetValue(action.Selector, action.Value, chromedp.ByQuery)); err != nil {
			return "", fmt.Errorf("selecting %q in %s: %w", action.Value, action.Selector, err)
		}
		return fmt.Sprintf("selected %q in %s", action.Value, action.Selector), nil

	case "press":
		if action.Selector == "" {
			return "", fmt.Errorf("press action without a selector")
		}
		if err := s.runActions(ctx, chromedp.SendKeys(action.Selector, keyForName(action.Value), chromedp.ByQuery)); err != nil {
			return "", fmt.Errorf("pressing %s on %q: %w", action.Value, action.Selector, err)
		}
		return fmt.Sprintf("pressed %s on %s", action.Value, action.Selector), nil

	case "scroll":
		direction := strings.ToLower(strings.TrimSpace(action.Value))
		if direction == "" {
			direction = "down"
		}
		script, err := scrollScript(direction)
		if err != nil {
			return "", err
		}
		if err := s.runActions(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return "", fmt.Errorf("scrolling %s: %w", direction, err)
		}
		return fmt.Sprintf("scrolled %s", direction), nil

	case "navigate":
		if action.URL == "" {
			return "", fmt.Errorf("navigate action without a url")
		}
		if err := s.Navigate(ctx, action.URL); err != nil {
			return "", err
		}
		return fmt.Sprintf("navigated to %s", action.URL), nil

	case "wait":
		ms, err := strconv.Atoi(strings.TrimSpace(action.Value))
		if err != nil || ms < 0 {
			return "", fmt.Errorf("wait action with an invalid duration %q", action.Value)
		}
		if err := s.runActions(ctx, chromedp.Sleep(time.Duration(ms)*time.Millisecond)); err != nil {
			return "", fmt.Errorf("waiting %dms: %w", ms, err)
		}
		return fmt.Sprintf("waited %dms", ms), nil

	default:
		return "", fmt.Errorf("model planned an unknown action %q", action.Action)
	}
}

// keyForName maps a human key name onto the key rune SendKeys expects.
// Unrecognized names pass through unchanged, which covers plain characters.
func keyForName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete":
		return kb.Delete
	case "arrowup", "up":
		return kb.ArrowUp
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowleft", "left":
		return kb.ArrowLeft
	case "arrowright", "right":
		return kb.ArrowRight
	default:
		return name
	}
}

// scrollScript renders the scroll JS for a direction. Instant behavior on
// purpose: the next snapshot should see the settled page.
func scrollScript(direction string) (string, error) {
	switch direction {
	case "down":
		return `window.scrollBy({top: window.innerHeight * 0.8, behavior: 'instant'});`, nil
	case "up":
		return `window.scrollBy({top: -window.innerHeight * 0.8, behavior: 'instant'});`, nil
	case "bottom":
		return `window.scrollTo({top: document.body.scrollHeight, behavior: 'instant'});`, nil
	case "top":
		return `window.scrollTo({top: 0, behavior: 'instant'});`, nil
	default:
		return "", fmt.Errorf("invalid scroll direction %q (supported: up, down, top, bottom)", direction)
	}
}
