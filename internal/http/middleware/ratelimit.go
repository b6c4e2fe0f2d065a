package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mototumen/community-api/internal/ratelimit"
)

// Throttle keeps token-bucket limiters per key with simple expiry. It bounds
// overall request rates at the transport level; the fixed-window limiters in
// internal/ratelimit guard individual sensitive operations.
type Throttle struct {
	limit  rate.Limit
	burst  int
	mu     sync.Mutex
	store  map[string]*throttleEntry
	maxAge time.Duration
}

type throttleEntry struct {
	limiter *rate.Limiter
	updated time.Time
}

// NewThrottle creates a per-key throttle.
func NewThrottle(reqPerSec float64, burst int) *Throttle {
	return &Throttle{
		limit:  rate.Limit(reqPerSec),
		burst:  burst,
		store:  make(map[string]*throttleEntry),
		maxAge: 10 * time.Minute,
	}
}

func (t *Throttle) get(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.store[key]; ok {
		entry.updated = time.Now()
		return entry.limiter
	}

	lim := rate.NewLimiter(t.limit, t.burst)
	t.store[key] = &throttleEntry{limiter: lim, updated: time.Now()}

	for k, entry := range t.store {
		if time.Since(entry.updated) > t.maxAge {
			delete(t.store, k)
		}
	}

	return lim
}

// IPThrottle applies the throttle keyed by remote IP.
func IPThrottle(t *Throttle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lim := t.get(realIPFromRequest(r))
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FixedWindow routes requests through a fixed-window limiter using keyFunc.
// Requests with an empty key pass through.
func FixedWindow(limiter *ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, err := ratelimit.Enforce(key, limiter); err != nil {
				var limitErr *ratelimit.LimitExceededError
				if errors.As(err, &limitErr) {
					w.Header().Set("Retry-After", strconv.Itoa(limitErr.WaitSeconds))
				}
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func realIPFromRequest(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
