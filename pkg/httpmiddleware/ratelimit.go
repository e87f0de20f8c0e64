package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the request budget per key per window.
	Max int
	// Window is the sliding window duration.
	Window time.Duration
	// KeyFunc derives the bucket key from a request. Nil means client IP.
	KeyFunc func(*http.Request) string
}

// bucket holds one key's counts for the current window and the window before
// it. The weighted sum of the two approximates a true sliding window without
// keeping per-request timestamps.
type bucket struct {
	hits      float64
	startedAt time.Time
	priorHits float64
	priorAt   time.Time
}

// verdict is the outcome of a single take on a bucket.
type verdict struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

type limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

// take records a request against key and reports whether it fits the budget.
func (l *limiter) take(key string, now time.Time) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{startedAt: now}
		l.buckets[key] = b
	}

	if now.Sub(b.startedAt) >= l.cfg.Window {
		b.priorHits, b.priorAt = b.hits, b.startedAt
		b.hits = 0
		b.startedAt = now.Truncate(l.cfg.Window)
		if now.Sub(b.priorAt) >= 2*l.cfg.Window {
			b.priorHits = 0
		}
	}

	// Weight the prior window by how much of it still lies inside the
	// sliding window ending now.
	overlap := 1.0 - now.Sub(b.startedAt).Seconds()/l.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	weighted := b.priorHits*overlap + b.hits

	v := verdict{resetAt: b.startedAt.Add(l.cfg.Window)}
	if weighted >= float64(l.cfg.Max) {
		return v
	}

	b.hits++
	v.allowed = true
	v.remaining = int(float64(l.cfg.Max) - weighted - 1)
	if v.remaining < 0 {
		v.remaining = 0
	}
	return v
}

// sweep drops buckets whose windows have fully expired.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.startedAt) >= 2*l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit returns a middleware enforcing a per-key sliding window limit.
// Over-budget requests get 429 with a JSON body; every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset.
//
// This variant never evicts idle buckets. Use RateLimitWithCleanup on
// long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that evicts
// expired buckets every 2x the window. The goroutine stops with ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.sweepLoop(ctx)
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := l.take(l.cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(v.resetAt.Unix(), 10))

			if !v.allowed {
				retryAfter := math.Ceil(time.Until(v.resetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				h.Set("Retry-After", strconv.Itoa(int(retryAfter)))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    429,
					"message": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CustomerKeyFunc keys the limiter by client IP combined with the
// X-Customer-ID header when present, falling back to IP alone. Customers
// behind a shared NAT get independent buckets, but the bucket stays scoped
// to the address: the header is client-supplied and unauthenticated, so it
// must never yield an address-independent key.
func CustomerKeyFunc(r *http.Request) string {
	ip := clientIP(r)
	if id := r.Header.Get("X-Customer-ID"); id != "" {
		return ip + "|" + id
	}
	return ip
}

// clientIP resolves the caller's address: X-Forwarded-For first, then
// X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The first entry in the list is the originating client.
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
