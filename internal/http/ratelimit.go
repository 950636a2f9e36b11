package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	last    time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters sync.Map // map[string]*ipLimiter
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 30 * time.Minute,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	v, _ := l.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)})
	il := v.(*ipLimiter)

	il.mu.Lock()
	il.last = time.Now()
	il.mu.Unlock()

	return il.limiter.Allow()
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(remoteIP(r)) {
			respondError(w, r, http.StatusTooManyRequests, "rate_limited", msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters idle longer than the TTL until ctx is done.
func (l *IPRateLimiter) Cleanup(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.evictIdle(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (l *IPRateLimiter) evictIdle(now time.Time) {
	l.limiters.Range(func(key, val any) bool {
		il := val.(*ipLimiter)
		il.mu.Lock()
		idle := now.Sub(il.last) > l.idleTTL
		il.mu.Unlock()
		if idle {
			l.limiters.Delete(key)
		}
		return true
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
