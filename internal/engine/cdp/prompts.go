// File: internal/engine/cdp/prompts.go
package cdp

import (
	"fmt"
	"strings"

	"github.com/pagepilot-ai/pagepilot/internal/engine"
)

const actSystemPrompt = `You are a browser automation planner. You receive a snapshot of the current page and one instruction. Choose exactly one next browser action that advances the instruction.

Respond with a single JSON object, no prose, of the form:
{"action": "...", "selector": "...", "value": "...", "url": "...", "reason": "..."}

Actions:
- "click": click the element at "selector".
- "type": type "value" into the element at "selector".
- "select": choose option "value" in the select element at "selector".
- "press": press the key named in "value" (for example "Enter") on the element at "selector".
- "scroll": scroll the page; "value" is one of "up", "down", "top", "bottom".
- "navigate": load "url".
- "wait": pause for "value" milliseconds.

Use selectors from the snapshot verbatim. Leave fields you do not need empty.`

const extractSystemPrompt = `You are a data extraction engine. You receive the visible text of a web page and an instruction describing what to extract. Respond with a single JSON object holding the extracted data and nothing else. When a requested value is absent on the page, use null.`

const observeSystemPrompt = `You are a browser automation analyst. You receive a snapshot of the current page and an instruction. Propose candidate page actions that satisfy the instruction without executing anything.

Respond with a single JSON object, no prose, of the form:
{"actions": [{"description": "...", "selector": "...", "method": "...", "arguments": ["..."]}]}

"method" is the DOM interaction to perform (for example "click" or "fill") and "arguments" carries its parameters. Use selectors from the snapshot verbatim.`

const agentSystemPrompt = `You are an autonomous browser agent working toward a task over multiple steps. Each turn you receive the current page snapshot and the actions taken so far. Decide the single next action, or declare the task complete.

Respond with a single JSON object, no prose, of the form:
{"action": {"action": "...", "selector": "...", "value": "...", "url": "...", "reason": "..."}, "reasoning": "...", "taskCompleted": false, "message": "..."}

The inner action uses the planner vocabulary: click, type, select, press, scroll, navigate, wait. Set "taskCompleted" to true only when the task is genuinely done, and summarize the outcome in "message".`

// renderSnapshot flattens a snapshot into the numbered-element text the
// planner prompts embed.
func renderSnapshot(snap *pageSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page title: %s\nPage URL: %s\n", snap.Title, snap.URL)
	if len(snap.Elements) == 0 {
		b.WriteString("No interactive elements detected.\n")
		return b.String()
	}
	b.WriteString("Interactive elements:\n")
	for i, el := range snap.Elements {
		label := el.Text
		if label == "" {
			label = el.Aria
		}
		if label == "" && el.Placeholder != "" {
			label = "placeholder: " + el.Placeholder
		}
		if label == "" {
			label = "(no text)"
		}
		fmt.Fprintf(&b, "%d) <%s> %s | selector: %s\n", i+1, el.Tag, label, el.Selector)
		if el.Href != "" {
			fmt.Fprintf(&b, "   href: %s\n", el.Href)
		}
		if el.Name != "" || el.Type != "" {
			fmt.Fprintf(&b, "   name: %s type: %s\n", el.Name, el.Type)
		}
	}
	return b.String()
}

// actPrompt builds the user prompt for single-action planning.
func actPrompt(snap *pageSnapshot, instruction string) string {
	return fmt.Sprintf("%s\nInstruction: %s", renderSnapshot(snap), instruction)
}

// extractPrompt builds the user prompt for structured extraction.
func extractPrompt(pageText, instruction string) string {
	return fmt.Sprintf("Page text:\n%s\n\nInstruction: %s", pageText, instruction)
}

// observePrompt builds the user prompt for action proposal.
func observePrompt(snap *pageSnapshot, instruction string) string {
	return fmt.Sprintf("%s\nInstruction: %s", renderSnapshot(snap), instruction)
}

// agentPrompt builds the per-step user prompt for an autonomous run. The
// executed history rides along so the model does not repeat itself.
func agentPrompt(snap *pageSnapshot, task, extra string, history []engine.AgentAction) string {
	var b strings.Builder
	b.WriteString(renderSnapshot(snap))
	fmt.Fprintf(&b, "\nTask: %s\n", task)
	if extra != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", extra)
	}
	if len(history) == 0 {
		b.WriteString("No actions taken yet.\n")
		return b.String()
	}
	b.WriteString("Actions taken so far:\n")
	for i, a := range history {
		fmt.Fprintf(&b, "%d. %s", i+1, a.Type)
		if len(a.Parameters) > 0 {
			fmt.Fprintf(&b, " %s", string(a.Parameters))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
