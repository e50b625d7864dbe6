package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	window int64
	count  int64
	ends   time.Time
}

// MemoryLimiter keeps counters in process. Stale counters are dropped
// lazily, at most once per cleanupEvery.
type MemoryLimiter struct {
	mu          sync.Mutex
	counters    map[string]*counter
	now         func() time.Time
	nextCleanup time.Time
}

const cleanupEvery = time.Minute

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counters: make(map[string]*counter), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, p Policy, key string) (Decision, error) {
	if disabled(p) {
		return Decision{Allowed: true, Remaining: p.Limit}, nil
	}

	now := m.now()
	idx, left := windowBounds(now, p.Window)
	k := p.Name + ":" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup(now)

	c, ok := m.counters[k]
	if !ok || c.window != idx {
		c = &counter{window: idx, ends: now.Add(left)}
		m.counters[k] = c
	}
	c.count++

	return decide(c.count, p, left), nil
}

func (m *MemoryLimiter) cleanup(now time.Time) {
	if now.Before(m.nextCleanup) {
		return
	}
	for k, c := range m.counters {
		if !now.Before(c.ends) {
			delete(m.counters, k)
		}
	}
	m.nextCleanup = now.Add(cleanupEvery)
}
