// Package ratelimit spaces outbound calls per backend provider.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the spacing applied when none is configured.
const DefaultMinInterval = time.Second

type providerClock struct {
	mu   sync.Mutex
	next time.Time
}

// Limiter enforces a minimum interval between calls tagged with the same provider id.
// Callers with different provider ids never wait on each other.
type Limiter struct {
	minInterval time.Duration
	now         func() time.Time

	mu     sync.Mutex
	clocks map[string]*providerClock
}

// New creates a limiter. A non-positive interval falls back to DefaultMinInterval.
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		minInterval: minInterval,
		now:         time.Now,
		clocks:      make(map[string]*providerClock),
	}
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

func (l *Limiter) clock(provider string) *providerClock {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clocks[provider]
	if !ok {
		c = &providerClock{}
		l.clocks[provider] = c
	}
	return c
}

// reserve claims the earliest permitted call time for provider and records it.
func (l *Limiter) reserve(provider string) time.Time {
	c := l.clock(provider)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := l.now()
	slot := now
	if c.next.After(now) {
		slot = c.next
	}
	c.next = slot.Add(l.minInterval)
	return slot
}

// Defer keeps provider idle for at least d from now, e.g. after a Retry-After response.
// It never moves an already later slot earlier.
func (l *Limiter) Defer(provider string, d time.Duration) {
	if d <= 0 {
		return
	}
	c := l.clock(provider)
	c.mu.Lock()
	defer c.mu.Unlock()

	if until := l.now().Add(d); until.After(c.next) {
		c.next = until
	}
}

// Wait blocks until provider may issue its next call or ctx is done.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	slot := l.reserve(provider)
	delay := slot.Sub(l.now())
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
