// File: internal/engine/engine.go

// Package engine defines the contract between the session driver and a
// browser automation backend. A backend opens model-steered sessions against
// a running browser; the driver owns session lifecycle and timeouts.
package engine

import (
	"context"
	"encoding/json"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// OpenOptions carries everything a backend needs to stand up one session.
type OpenOptions struct {
	// Model is the derived identity steering this session.
	Model llm.Identity
	// APIKey authenticates the model client.
	APIKey string
	// ConnectURL points at an already-running browser (CDP websocket or
	// HTTP endpoint). Empty means the backend launches its own browser.
	ConnectURL string
	// EnableCaching turns on in-session memoization of model completions.
	EnableCaching bool
	// Verbosity tunes how chatty the session's log stream is (0 quietest).
	Verbosity int
	// LogSink receives the session's log stream. May be nil.
	LogSink func(schemas.LogMessage)
}

// Engine opens browser sessions.
type Engine interface {
	Open(ctx context.Context, opts OpenOptions) (Session, error)
}

// Session is one model-steered browser session. Implementations add no
// timeouts of their own; callers bound each call through ctx. Close is
// idempotent, though the driver calls it exactly once.
type Session interface {
	// Navigate loads the url and returns once core content is parsed,
	// without waiting for every subresource.
	Navigate(ctx context.Context, url string) error
	// Act performs a single natural-language instruction and reports what
	// was done.
	Act(ctx context.Context, instruction string) (string, error)
	// Extract pulls structured data off the page, shaped by the contract.
	Extract(ctx context.Context, instruction string, contract *schema.Contract) (map[string]any, error)
	// Observe proposes candidate page actions for the instruction without
	// executing any of them.
	Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error)
	// RunAgent drives a multi-step autonomous task.
	RunAgent(ctx context.Context, task AgentTask) (*AgentResult, error)
	// Location reports the page's current URL.
	Location(ctx context.Context) (string, error)
	// Close tears the session down.
	Close(ctx context.Context) error
}

// AgentTask describes one autonomous multi-step run.
type AgentTask struct {
	Task           string
	MaxSteps       int
	Context        string
	AutoScreenshot bool
}

// AgentAction is one executed step of an agent run. It is a superset of the
// reduced record surfaced to callers; PageURL and DurationMS stay internal.
type AgentAction struct {
	Type          string          `json:"type"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	TaskCompleted bool            `json:"task_completed"`
	PageURL       string          `json:"page_url,omitempty"`
	DurationMS    int64           `json:"duration_ms,omitempty"`
}

// AgentResult is the outcome of an agent run.
type AgentResult struct {
	Success   bool
	Completed bool
	Message   string
	Actions   []AgentAction
}
