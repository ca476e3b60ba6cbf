package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process SessionCache backend used for development and
// tests. A background sweep bounds memory by removing expired entries;
// reads check expiry lazily so the sweep interval never affects correctness.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]Entry
	stopSweep chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewMemory creates an in-memory cache sweeping at the given interval.
func NewMemory(sweepInterval time.Duration) *Memory {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	c := &Memory{
		items:     make(map[string]Entry),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}
	go c.sweep(sweepInterval)
	return c
}

func (c *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	now := c.now()
	if entry.Expired(now) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && e.Expired(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *Memory) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	// Copy to decouple from the caller's buffer.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	c.mu.Lock()
	c.items[key] = Entry{Key: key, Payload: buf, CreatedAt: c.now(), TTL: ttl}
	c.mu.Unlock()
	return nil
}

func (c *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for k, v := range c.items {
				if v.Expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopSweep:
			return
		}
	}
}

// Close stops the sweep goroutine.
func (c *Memory) Close() error {
	c.closeOnce.Do(func() { close(c.stopSweep) })
	return nil
}

// Len returns the number of live plus not-yet-swept entries.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
