package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultBuckets are the per-IP limits for each route group.
var DefaultBuckets = map[string]Bucket{
	"predict": {MaxRequests: 30, Window: time.Minute},
	"api":     {MaxRequests: 120, Window: time.Minute},
	"ws":      {MaxRequests: 10, Window: time.Minute},
}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-bucket.Window)

	// Prune old entries
	times := l.hits[key]
	pruned := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

// Sweep drops keys with no hit inside the longest bucket window and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	var longest time.Duration
	for _, b := range DefaultBuckets {
		longest = max(longest, b.Window)
	}
	cutoff := l.now().Add(-longest)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// Check writes a 429 response if the client IP is over the named bucket's
// limit. Returns true if the request was rejected.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, bucketName string) bool {
	bucket, ok := DefaultBuckets[bucketName]
	if !ok {
		bucket = Bucket{MaxRequests: 60, Window: time.Minute}
	}

	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Real-IP"); fwd != "" {
		ip = fwd
	}
	key := bucketName + ":" + ip

	if l.Allow(key, bucket) {
		return false
	}

	retry := strconv.Itoa(int(bucket.Window.Seconds()))
	w.Header().Set("Retry-After", retry)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limited","retry_after_seconds":` + retry + `}`))
	return true
}

// Middleware applies Check to every request in a route group.
func (l *Limiter) Middleware(bucketName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Check(w, r, bucketName) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
