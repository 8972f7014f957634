package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReconnectSource reports how many times the store handle was reopened.
type ReconnectSource interface {
	Reconnects() uint64
}

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu      sync.Mutex
	entries map[string]uint64
	store   ReconnectSource
}

func New() *Collector {
	return &Collector{entries: map[string]uint64{}}
}

// Watch attaches the connection manager whose reconnect count is reported.
func (c *Collector) Watch(store ReconnectSource) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordEntries counts written entries per operation.
func (c *Collector) RecordEntries(op string, n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[op] += uint64(n)
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	entries := make(map[string]uint64, len(c.entries))
	for op, n := range c.entries {
		entries[op] = n
	}
	var reconnects uint64
	if c.store != nil {
		reconnects = c.store.Reconnects()
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"entriesTotal":     entries,
		"reconnectsTotal":  reconnects,
	}
}
