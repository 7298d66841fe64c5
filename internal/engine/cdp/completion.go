// File: internal/engine/cdp/completion.go
package cdp

import (
	"context"
	"hash/fnv"
	"io"

	json "github.com/json-iterator/go"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/llm"
	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

// complete runs one model generation for the session, consulting the
// in-session cache first when caching is on. Every real model call emits a
// usage message; cache hits do not, since no tokens were spent.
func (s *Session) complete(ctx context.Context, req llm.Request) (string, error) {
	key := completionKey(req)
	if s.cache != nil {
		if text, ok := s.cachedCompletion(key); ok {
			s.logger.Debug("Completion served from session cache")
			return text, nil
		}
	}

	resp, err := s.client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	s.emitUsage(resp.Usage)

	if s.cache != nil {
		s.storeCompletion(key, resp.Text)
	}
	return resp.Text, nil
}

func (s *Session) cachedCompletion(key uint64) (string, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	text, ok := s.cache[key]
	return text, ok
}

func (s *Session) storeCompletion(key uint64, text string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[key] = text
}

// completionKey hashes the parts of a request that determine its answer:
// FNV-1a over the system prompt, the user prompt and the contract shape.
func completionKey(req llm.Request) uint64 {
	h := fnv.New64a()
	io.WriteString(h, req.System)
	h.Write([]byte{0})
	io.WriteString(h, req.Prompt)
	h.Write([]byte{0})
	writeContractSignature(h, req.Contract)
	return h.Sum64()
}

// writeContractSignature streams a canonical rendering of the contract into
// the hash. Properties go in sorted, so map iteration order never leaks in.
func writeContractSignature(w io.Writer, c *schema.Contract) {
	if c == nil {
		return
	}
	io.WriteString(w, string(c.Kind))
	if c.Optional {
		io.WriteString(w, "?")
	}
	if c.Open {
		io.WriteString(w, "*")
	}
	if c.Description != "" {
		io.WriteString(w, "<"+c.Description+">")
	}
	if c.Items != nil {
		io.WriteString(w, "[")
		writeContractSignature(w, c.Items)
		io.WriteString(w, "]")
	}
	names := c.PropertyNames()
	if len(names) > 0 {
		io.WriteString(w, "{")
		for _, name := range names {
			io.WriteString(w, name+":")
			writeContractSignature(w, c.Properties[name])
			io.WriteString(w, ";")
		}
		io.WriteString(w, "}")
	}
}

// emitUsage reports one model call's token spend on the log stream in the
// envelope the usage aggregator consumes.
func (s *Session) emitUsage(usage llm.Usage) {
	raw, err := json.Marshal(map[string]any{
		"model": s.model.String(),
		"usage": usage,
	})
	if err != nil {
		return
	}
	s.emit(schemas.LogCategoryModelUsage, "model call completed", levelLifecycle, map[string]schemas.LogValue{
		schemas.AuxKeyResponse: {Value: string(raw), Type: "object"},
	})
}
