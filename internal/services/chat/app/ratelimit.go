package server

import (
	"sync"
	"time"
)

// rateLimiter enforces a fixed-window request budget per key. Windows reset
// wholesale when they expire, so a burst straddling the boundary can briefly
// see up to twice the limit.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*rateBucket
}

type rateBucket struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		buckets: make(map[string]*rateBucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok || now.Sub(bucket.windowStart) >= l.window {
		bucket = &rateBucket{windowStart: now}
		l.buckets[key] = bucket
	}
	bucket.count++
	return bucket.count <= l.limit
}
