package server

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	maxBuckets = 10_000
	bucketTTL  = 10 * time.Minute
)

// limiter is a per-principal token bucket. Capacity and refill rate are both
// perMinute, so an idle principal accrues at most one minute of burst.
type limiter struct {
	perMinute int
	clock     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newLimiter(perMinute int, clock func() time.Time) *limiter {
	return &limiter{
		perMinute: perMinute,
		clock:     clock,
		buckets:   map[string]*bucket{},
	}
}

func (l *limiter) allow(principal string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	b, ok := l.buckets[principal]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.evictIdle(now)
		}
		b = &bucket{tokens: float64(l.perMinute), last: now}
		l.buckets[principal] = b
	}

	capacity := float64(l.perMinute)
	b.tokens = math.Min(capacity, b.tokens+now.Sub(b.last).Minutes()*capacity)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *limiter) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > bucketTTL {
			delete(l.buckets, key)
		}
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		principal := r.Header.Get("x-api-key")
		if principal == "" {
			principal = r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				principal = host
			}
		}

		if !s.limiter.allow(principal) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
