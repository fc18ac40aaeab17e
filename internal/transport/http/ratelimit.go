package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimitBypass lists paths the limiter never touches: health and
// introspection endpoints, and the WebSocket upgrade (the limiter guards the
// plain request path, not persistent connections).
var rateLimitBypass = map[string]struct{}{
	"/":       {},
	"/health": {},
	"/ws":     {},
}

// Limiter is a per-client sliding-window admission controller. Each key holds
// the ordered timestamps of admitted requests inside the trailing window;
// denied attempts are not recorded. Keys are created lazily and pruned on
// access, which is bounded because key cardinality tracks distinct client
// addresses.
type Limiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewLimiter builds a limiter, falling back to safe defaults for invalid input.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = 100
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Limiter{
		capacity: capacity,
		window:   window,
		clients:  make(map[string]*clientWindow),
	}
}

// Capacity returns the per-window request budget.
func (l *Limiter) Capacity() int { return l.capacity }

// Admit decides whether a request from key at time now is allowed. It returns
// the remaining budget and the reset horizon. The reset is always now+window,
// a rolling approximation rather than the instant the oldest slot frees;
// clients retrying after it are guaranteed a fresh window. Total over any
// (key, now); never errors.
//
// Checks for the same key are serialized on the key's own lock so two
// concurrent requests cannot both squeeze past the last slot; different keys
// do not contend.
func (l *Limiter) Admit(key string, now time.Time) (allowed bool, remaining int, reset time.Time) {
	w := l.windowFor(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Drop timestamps strictly older than the trailing window, in place.
	cut := now.Add(-l.window)
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if !t.Before(cut) {
			kept = append(kept, t)
		}
	}
	w.stamps = kept

	reset = now.Add(l.window)
	if len(w.stamps) >= l.capacity {
		return false, 0, reset
	}

	w.stamps = append(w.stamps, now)
	return true, l.capacity - len(w.stamps), reset
}

func (l *Limiter) windowFor(key string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok {
		w = &clientWindow{stamps: make([]time.Time, 0, l.capacity)}
		l.clients[key] = w
	}
	return w
}

// RateLimitMiddleware enforces the limiter on every request outside the
// bypass list, keyed by client IP. Admitted and denied requests both carry
// the X-RateLimit response headers; denial is 429 and retryable.
func RateLimitMiddleware(limiter *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := rateLimitBypass[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		allowed, remaining, reset := limiter.Admit(c.ClientIP(), time.Now())

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Capacity()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}

		c.Next()
	}
}
