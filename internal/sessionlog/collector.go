// Package sessionlog captures the log stream an engine session produces
// while one input item is processed, and provides the pure functions that
// filter it for output and aggregate model usage out of it.
package sessionlog

import (
	"sync"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// Collector buffers the messages of exactly one session. Each input item
// gets its own collector; nothing is shared across items. The zero value is
// not usable, construct with NewCollector.
type Collector struct {
	mu   sync.Mutex
	msgs []schemas.LogMessage
}

func NewCollector() *Collector {
	return &Collector{}
}

// Append records one message. Safe for concurrent use: engine sessions log
// from their own goroutines while the driver owns the item.
func (c *Collector) Append(msg schemas.LogMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

// Messages returns a snapshot copy in append order. Mutating the returned
// slice does not affect the collector.
func (c *Collector) Messages() []schemas.LogMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schemas.LogMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len reports how many messages have been captured so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}
