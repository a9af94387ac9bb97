package gateway

import "sync"

// ModelCache remembers the last model that produced a parseable result so
// later calls can try it first. It is a best-effort latency optimization,
// never a correctness dependency; share one across gateways or give each
// test its own.
type ModelCache struct {
	mu   sync.Mutex
	last string
}

func NewModelCache() *ModelCache {
	return &ModelCache{}
}

func (c *ModelCache) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *ModelCache) Set(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = model
}
