package gateway

import (
	"sync"
	"time"
)

// DefaultRequestsPerMinute allows sustained typing with edit requests
const DefaultRequestsPerMinute = 1200

// SessionRateLimiter implements sliding window rate limiting per session
type SessionRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	requests          []time.Time
	now               func() time.Time
}

// NewSessionRateLimiter creates a rate limiter. A non-positive limit
// selects DefaultRequestsPerMinute.
func NewSessionRateLimiter(requestsPerMinute int) *SessionRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &SessionRateLimiter{
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
	}
}

// Allow records a request and reports whether it fits in the window
func (r *SessionRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)
	if len(r.requests) >= r.requestsPerMinute {
		return false
	}
	r.requests = append(r.requests, now)
	return true
}

// Count returns the number of requests in the current window
func (r *SessionRateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(r.now())
	return len(r.requests)
}

func (r *SessionRateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	keep := 0
	for _, t := range r.requests {
		if t.After(cutoff) {
			r.requests[keep] = t
			keep++
		}
	}
	r.requests = r.requests[:keep]
}
