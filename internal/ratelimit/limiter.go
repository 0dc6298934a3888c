// Package ratelimit implements fixed-window request counting keyed by arbitrary strings.
//
// The in-memory Limiter is process-local: several service instances behind a
// load balancer each keep their own counters. RedisStore shares counters
// between instances when that matters.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cimillas/giftlink/internal/clock"
)

// Policy is a request budget per window.
type Policy struct {
	Max    int
	Window time.Duration
}

var (
	// ClaimPolicy guards the claim endpoints.
	ClaimPolicy = Policy{Max: 20, Window: 60 * time.Second}
	// LoginPolicy guards the admin login endpoint.
	LoginPolicy = Policy{Max: 5, Window: 60 * time.Second}
)

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Checker is satisfied by both the in-memory Limiter and RedisStore.
type Checker interface {
	Check(ctx context.Context, key string, p Policy) (Result, error)
}

type window struct {
	start  time.Time
	count  int
	length time.Duration
}

func (w *window) elapsed(now time.Time) bool {
	return !now.Before(w.start.Add(w.length))
}

// Limiter is an in-memory fixed-window counter. The zero value is not usable; use New.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   clock.Clock
}

func New(clk clock.Clock) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		clock:   clk,
	}
}

// Check counts one request for key and reports whether it fits in the current window.
// It never fails; the error is there to satisfy Checker.
func (l *Limiter) Check(_ context.Context, key string, p Policy) (Result, error) {
	return l.check(key, p.Max, p.Window), nil
}

func (l *Limiter) check(key string, max int, length time.Duration) Result {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.elapsed(now) {
		w = &window{start: now, length: length}
		l.windows[key] = w
	}
	w.count++

	remaining := max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   w.count <= max,
		Remaining: remaining,
		ResetAt:   w.start.Add(w.length),
	}
}

// Evict drops every entry whose window has elapsed and returns how many were removed.
func (l *Limiter) Evict() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, w := range l.windows {
		if w.elapsed(now) {
			delete(l.windows, key)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run evicts stale entries every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}
