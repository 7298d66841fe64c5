package schemas

import "time"

// Log categories emitted by engine sessions.
const (
	LogCategorySession    = "session"
	LogCategoryAction     = "action"
	LogCategoryScreenshot = "screenshot"
	// LogCategoryModelUsage tags messages whose auxiliary "response" payload
	// carries model token usage. The usage aggregator scans only this
	// category.
	LogCategoryModelUsage = "llm_usage"
)

// AuxKeyResponse is the auxiliary key under which usage-bearing messages
// store the serialized model response envelope.
const AuxKeyResponse = "response"

// LogValue is one auxiliary payload entry attached to a LogMessage. Value
// holds the stringified payload and Type names its declared shape
// ("object", "string", ...).
type LogValue struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// LogMessage is one diagnostic message produced by an engine session.
// Messages are appended to a per-session buffer during processing and
// discarded at session end unless surfaced in the output record.
type LogMessage struct {
	Category  string              `json:"category"`
	Message   string              `json:"message"`
	Level     int                 `json:"level"`
	Auxiliary map[string]LogValue `json:"auxiliary,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// FilteredLog is the projection of a LogMessage surfaced in an OutputRecord
// after output filtering.
type FilteredLog struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Level    int    `json:"level"`
}

// UsageTotals accumulates model token counters across a session.
type UsageTotals struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another set of counters into u.
func (u *UsageTotals) Add(o UsageTotals) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}
