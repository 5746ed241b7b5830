package router

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerState tracks one caller's token bucket and the last time it was used,
// so idle entries can be evicted.
type callerState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-caller token bucket, keyed by client IP. The
// manual entry points share one instance so a noisy caller cannot starve
// the push path.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerState
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing limit requests per second with
// the given burst, and starts the background eviction loop.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*callerState),
		limit:   limit,
		burst:   burst,
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.callers[ip]
	if !ok {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.callers[ip] = &callerState{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	c.lastSeen = time.Now()
	return c.limiter
}

// evictIdle drops callers not seen for three minutes.
func (rl *RateLimiter) evictIdle() {
	for {
		time.Sleep(time.Minute)

		rl.mu.Lock()
		for ip, c := range rl.callers {
			if time.Since(c.lastSeen) > 3*time.Minute {
				delete(rl.callers, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// LimitByIP rejects requests with 429 once the caller's bucket is empty.
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			slog.Error("could not get ip from remote address", "err", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		limiter := rl.bucketFor(ip)
		if !limiter.Allow() {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path, "limit", rl.limit, "burst", rl.burst)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
