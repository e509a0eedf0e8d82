package toolexec

import (
	"strings"
	"sync"
)

// collector accumulates every LogEvent sent through a dualSink, regardless
// of whether the primary side ever received it, forming the eventual
// tool-role message content.
type collector struct {
	mu     sync.Mutex
	events []LogEvent
}

func newCollector() *collector {
	return &collector{}
}

func (c *collector) add(ev LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// render joins collected text in arrival order. Result/Log/Debug/Error
// lines are not distinguished in the final message body; the tagged Kind
// is preserved only on the live SSE stream.
func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		parts = append(parts, ev.Text)
	}
	return strings.Join(parts, "\n")
}
