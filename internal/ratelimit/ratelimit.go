package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter is a fixed-window request counter keyed by arbitrary identifiers.
// It never blocks; callers decide whether to abort the guarded operation.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// New creates a limiter allowing maxRequests per window and starts the
// background sweep that evicts expired entries every window.
func New(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		max:     maxRequests,
		window:  window,
		entries: make(map[string]*entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Check counts a request for the identifier within the current window.
// The count is not incremented once the limit is reached.
func (l *Limiter) Check(identifier string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetTime) {
		reset := now.Add(l.window)
		l.entries[identifier] = &entry{count: 1, resetTime: reset}
		return Result{Allowed: true, Remaining: l.max - 1, ResetTime: reset}
	}

	if e.count >= l.max {
		return Result{Allowed: false, Remaining: 0, ResetTime: e.resetTime}
	}

	e.count++
	return Result{Allowed: true, Remaining: l.max - e.count, ResetTime: e.resetTime}
}

// Reset forgets the identifier immediately.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// Stop terminates the background sweep.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for key, e := range l.entries {
				if now.After(e.resetTime) {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// LimitExceededError reports how long the caller must wait before retrying.
type LimitExceededError struct {
	WaitSeconds int
	ResetTime   time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %d seconds", e.WaitSeconds)
}

// Enforce checks the identifier and fails with a LimitExceededError when the
// limit is exhausted. Callers must surface the wait time, not retry silently.
func Enforce(identifier string, l *Limiter) (Result, error) {
	res := l.Check(identifier)
	if !res.Allowed {
		wait := int(math.Ceil(time.Until(res.ResetTime).Seconds()))
		if wait < 0 {
			wait = 0
		}
		return res, &LimitExceededError{WaitSeconds: wait, ResetTime: res.ResetTime}
	}
	return res, nil
}
