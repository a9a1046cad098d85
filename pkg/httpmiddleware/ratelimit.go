package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// entry tracks request counts across two adjacent windows.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// MemoryLimiter is a process-local sliding window limiter. The previous
// window is weighted by how much of it overlaps the sliding window.
type MemoryLimiter struct {
	max     int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryLimiter creates a MemoryLimiter allowing max requests per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		entries: make(map[string]*entry),
	}
}

// Allow registers a request for key at now.
func (rl *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok {
		e = &entry{currStart: now}
		rl.entries[key] = e
	}

	if now.Sub(e.currStart) >= rl.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(rl.window)
		if now.Sub(e.prevStart) >= 2*rl.window {
			e.prevCount = 0
		}
	}

	elapsed := now.Sub(e.currStart)
	overlap := max(1.0-elapsed.Seconds()/rl.window.Seconds(), 0)
	effective := e.prevCount*overlap + e.currCount
	resetAt := e.currStart.Add(rl.window)

	if effective >= float64(rl.max) {
		return Decision{ResetAt: resetAt}, nil
	}

	e.currCount++
	effective++
	return Decision{
		Allowed:   true,
		Remaining: max(int(float64(rl.max)-effective), 0),
		ResetAt:   resetAt,
	}, nil
}

// cleanup removes entries whose windows have fully expired.
func (rl *MemoryLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.entries {
		if now.Sub(e.currStart) >= 2*rl.window {
			delete(rl.entries, key)
		}
	}
}

// StartCleanup evicts expired entries every two windows until ctx is
// cancelled.
func (rl *MemoryLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
}

// RateLimit returns a middleware that enforces a per-key limit using
// limiter. Exceeding the limit yields 429 with the API error body. Every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Limiter failures are logged and the request proceeds.
func RateLimit(cfg RateLimitConfig, limiter Limiter) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultKeyFunc
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			dec, err := limiter.Allow(r.Context(), key, time.Now())
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))

			if !dec.Allowed {
				retryAfter := max(time.Until(dec.ResetAt), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// defaultKeyFunc extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
