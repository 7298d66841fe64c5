package schemas

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// -- Operation Payloads --

// ActStep pairs one executed instruction with the engine's result text.
type ActStep struct {
	Instruction string `json:"instruction"`
	Result      string `json:"result"`
}

// ActPayload is the output of an act operation: the executed steps in order
// and the page location after the last step.
type ActPayload struct {
	Steps   []ActStep `json:"steps"`
	PageURL string    `json:"page_url,omitempty"`
}

// ExtractPayload carries the structured value returned by the engine. The
// value matches the resolved contract as far as the engine honored it; no
// further validation happens at the driver level.
type ExtractPayload struct {
	Data map[string]any `json:"data"`
}

// ObservedAction is one candidate page action proposed by the engine.
type ObservedAction struct {
	Description string   `json:"description"`
	Selector    string   `json:"selector"`
	Method      string   `json:"method"`
	Arguments   []string `json:"arguments,omitempty"`
}

// ObservePayload is the engine's proposed action plan, returned verbatim.
type ObservePayload struct {
	Actions []ObservedAction `json:"actions"`
}

// ActionRecord is the reduced form of one agent action kept in the output.
// Per-action diagnostics beyond these four fields are dropped.
type ActionRecord struct {
	Type          string          `json:"type"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	TaskCompleted bool            `json:"task_completed"`
}

// AgentPayload is the output of an agent operation.
type AgentPayload struct {
	Success     bool           `json:"success"`
	Completed   bool           `json:"completed"`
	Message     string         `json:"message"`
	ActionCount int            `json:"action_count"`
	Actions     []ActionRecord `json:"actions"`
	Usage       *UsageTotals   `json:"usage,omitempty"`
	PageURL     string         `json:"page_url,omitempty"`
}

// -- Output Records --

// Error kinds carried by a RecordError.
const (
	ErrKindSchema      = "schema"
	ErrKindConnection  = "connection"
	ErrKindNavigation  = "navigation"
	ErrKindOperation   = "operation"
	ErrKindUnsupported = "unsupported_operation"
)

// RecordError is the serialized classification of a per-item failure.
type RecordError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OutputRecord is the single result produced for one input item. Exactly one
// record exists per item, in input order, whether the item succeeded or not.
type OutputRecord struct {
	Operation OperationKind `json:"operation"`
	Payload   any           `json:"payload,omitempty"`
	Logs      []FilteredLog `json:"logs,omitempty"`
	Error     *RecordError  `json:"error,omitempty"`
}

// Failed reports whether the record carries an error instead of a payload.
func (r *OutputRecord) Failed() bool { return r.Error != nil }

// BatchResult is the ordered set of output records for one batch run.
type BatchResult struct {
	ID         uuid.UUID      `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Records    []OutputRecord `json:"records"`
}
