// Package ratelimit implements fixed-window request rate limiting keyed by
// client identity. Keys should be route-qualified so endpoints sharing one
// limiter do not bleed quota into each other.
//
// A fixed window resets its counter wholesale at the window boundary, so a
// client can send up to 2*max-1 requests straddling a boundary. That
// characteristic is inherited from the original deployment and kept for
// compatibility rather than replaced with a sliding window.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Config defines the window for a limiter instance
type Config struct {
	// Window is the duration of the fixed window
	Window time.Duration
	// MaxRequests is the max requests allowed per key per window
	MaxRequests int
}

// DefaultConfig returns the limits applied to anonymous traffic
func DefaultConfig() Config {
	return Config{
		Window:      time.Minute,
		MaxRequests: 100,
	}
}

// Result is the outcome of evaluating one request against the limiter
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// RetryAfter returns the whole seconds until the window resets, rounded up,
// suitable for a Retry-After header.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetTime.Sub(now).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// Evaluator is the common surface of the in-memory and Redis limiters
type Evaluator interface {
	Evaluate(ctx context.Context, key string) (Result, error)
	// Config reports the window the evaluator enforces, so callers can
	// surface the limit without threading it separately.
	Config() Config
}

// Entry is one key's counter within the current window. An entry is
// replaced, never merely reset, once its window has passed.
type Entry struct {
	Count     int
	ResetTime time.Time
}

// Store holds per-key window entries. Implementations do not need to be
// concurrency-safe; the Limiter serializes access.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry)
	// Sweep drops entries whose window has passed, bounding memory growth
	Sweep(now time.Time)
}

// Limiter is a process-local fixed-window limiter. Deployments scaled
// horizontally each enforce an independent quota; use RedisLimiter when the
// quota must be shared across instances.
type Limiter struct {
	config Config
	store  Store
	mu     sync.Mutex
	now    func() time.Time
}

// NewLimiter creates a limiter over the given store. A nil store gets an
// in-memory LRU-bounded store.
func NewLimiter(config Config, store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore(DefaultMemoryStoreSize)
	}
	return &Limiter{
		config: config,
		store:  store,
		now:    time.Now,
	}
}

// Evaluate applies the fixed-window algorithm to key. The read-increment-
// write sequence holds the limiter mutex, so concurrent requests for the
// same key never undercount. The error is always nil; it exists to satisfy
// Evaluator alongside the Redis-backed limiter.
func (l *Limiter) Evaluate(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.store.Sweep(now)

	e, ok := l.store.Get(key)
	if !ok || !now.Before(e.ResetTime) {
		e = Entry{Count: 1, ResetTime: now.Add(l.config.Window)}
		l.store.Set(key, e)
		return Result{
			Allowed:   true,
			Remaining: l.config.MaxRequests - 1,
			ResetTime: e.ResetTime,
		}, nil
	}

	if e.Count < l.config.MaxRequests {
		e.Count++
		l.store.Set(key, e)
		return Result{
			Allowed:   true,
			Remaining: l.config.MaxRequests - e.Count,
			ResetTime: e.ResetTime,
		}, nil
	}

	// Denied: the entry is left untouched so the standing reset time can be
	// reported for Retry-After.
	return Result{
		Allowed:   false,
		Remaining: 0,
		ResetTime: e.ResetTime,
	}, nil
}

// Config returns the limiter configuration
func (l *Limiter) Config() Config {
	return l.config
}
