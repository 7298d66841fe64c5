package sessionlog

import (
	json "github.com/json-iterator/go"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// AggregateUsage sums model token usage across every usage-tagged message in
// the captured stream. Returns nil when no message yielded a parseable usage
// object. A malformed payload on one message is skipped; the scan continues.
func AggregateUsage(msgs []schemas.LogMessage) *schemas.UsageTotals {
	var total schemas.UsageTotals
	found := false
	for _, msg := range msgs {
		if msg.Category != schemas.LogCategoryModelUsage {
			continue
		}
		aux, ok := msg.Auxiliary[schemas.AuxKeyResponse]
		if !ok {
			continue
		}
		usage, ok := parseUsage(aux.Value)
		if !ok {
			continue
		}
		total.Add(usage)
		found = true
	}
	if !found {
		return nil
	}
	return &total
}

// parseUsage reads one response payload. The usage object is either the
// document root or nested under "usage". Counter keys arrive in snake_case
// or camelCase depending on which provider produced the payload; both
// spellings are accepted and normalized to UsageTotals right here, so the
// dual naming never travels further into the system.
func parseUsage(raw string) (schemas.UsageTotals, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return schemas.UsageTotals{}, false
	}
	holder := doc
	if nested, ok := doc["usage"].(map[string]any); ok {
		holder = nested
	}

	prompt, okPrompt := counter(holder, "prompt_tokens", "promptTokens")
	completion, okCompletion := counter(holder, "completion_tokens", "completionTokens")
	totalTokens, okTotal := counter(holder, "total_tokens", "totalTokens")
	if !okPrompt && !okCompletion && !okTotal {
		return schemas.UsageTotals{}, false
	}
	// Counters are token counts; a negative one means the payload is junk.
	if prompt < 0 || completion < 0 || totalTokens < 0 {
		return schemas.UsageTotals{}, false
	}
	return schemas.UsageTotals{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      totalTokens,
	}, true
}

func counter(m map[string]any, snake, camel string) (int, bool) {
	for _, key := range []string{snake, camel} {
		v, present := m[key]
		if !present {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		case int64:
			return int(n), true
		}
	}
	return 0, false
}
