// Package ratelimit bounds unauthenticated ingest per client address.
// A fixed window counter is enough here: the limit exists to keep a
// misbehaving agent from monopolizing the classifier, not to shape
// traffic precisely.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether a request from key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	count int
	reset time.Time
}

// MemoryLimiter is the process-local fallback when no Redis address is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	max     int
	period  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(max int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.reset) {
		// Stale entries for other keys get cleaned up lazily here so
		// the map does not grow with one-off clients.
		if len(l.windows) > 10000 {
			for k, v := range l.windows {
				if now.After(v.reset) {
					delete(l.windows, k)
				}
			}
		}
		l.windows[key] = window{count: 1, reset: now.Add(l.period)}
		return true, nil
	}
	if w.count >= l.max {
		return false, nil
	}
	w.count++
	l.windows[key] = w
	return true, nil
}
