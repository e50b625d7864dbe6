// Package ratelimit implements fixed-window request budgets per client.
//
// Windows are aligned to multiples of the policy window since the Unix
// epoch, so every replica sharing a Redis instance agrees on the window a
// request falls into.
package ratelimit

import (
	"context"
	"time"
)

// Policy is a named budget: at most Limit requests per Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left until the current window closes.
	RetryAfter time.Duration
}

// Limiter counts a request by key against policy.
type Limiter interface {
	Allow(ctx context.Context, policy Policy, key string) (Decision, error)
}

// windowBounds returns the index of the window containing now and the time
// remaining until it ends.
func windowBounds(now time.Time, window time.Duration) (int64, time.Duration) {
	n := now.UnixNano()
	w := int64(window)
	idx := n / w
	return idx, time.Duration((idx+1)*w - n)
}

func decide(count int64, p Policy, left time.Duration) Decision {
	remaining := p.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= int64(p.Limit), Remaining: remaining, RetryAfter: left}
}

// disabled reports whether the policy lets everything through.
func disabled(p Policy) bool {
	return p.Limit <= 0 || p.Window <= 0
}
