// Package ratelimit provides the shared per-address request limiter for the
// authentication endpoints.
//
// Signup and login are the only endpoints an attacker can hammer without a
// session, and a 4-digit PIN space makes online guessing attractive. The
// limiter caps each client address to a fixed budget per window; the
// counter is process-wide state guarded by a mutex so concurrent requests
// never undercount.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Defaults matching the service's published policy: 15 requests per
// 15-minute window per client address on signup/login.
const (
	DefaultLimit  = 15
	DefaultWindow = 15 * time.Minute
)

// LimitExceededMessage is the body sent with every 429.
const LimitExceededMessage = "Too many requests from this IP, please try again after 15 minutes"

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time // injectable clock for tests

	mu      sync.Mutex
	buckets map[string]*window
}

// New creates a Limiter allowing limit requests per window duration.
func New(limit int, windowDur time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  windowDur,
		now:     time.Now,
		buckets: make(map[string]*window),
	}
}

// Allow records one request for key and reports whether it is within the
// budget. The first request of a window starts the window; once the window
// elapses, the key's count resets.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &window{count: 1, resetAt: now.Add(l.window)}
		l.prune(now)
		return true
	}

	b.count++
	return b.count <= l.limit
}

// prune drops expired windows so the map doesn't grow with every address
// ever seen. Called with mu held, only on the bucket-creation path, so the
// common case pays nothing.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// Middleware enforces the limit per client address. It must run after
// chi's RealIP middleware so RemoteAddr holds the real client behind a
// proxy, not the proxy itself.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientAddr(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"` + LimitExceededMessage + `"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr strips the port from RemoteAddr so one client isn't a fresh
// key per connection. chi's RealIP may have already replaced RemoteAddr
// with a bare IP (no port), in which case SplitHostPort fails and the
// address is used as-is.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
