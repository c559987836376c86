package ratelimit

import (
	"strings"
	"time"
)

// Limiter throttles by an application-level key, for spots where the key
// comes from the request body (a subject's address) rather than the
// connection.
type Limiter struct {
	store  Store
	rate   int
	period time.Duration
}

func NewLimiter(store Store, rate int, period time.Duration) *Limiter {
	return &Limiter{store: store, rate: rate, period: period}
}

// Allow records one attempt for the key and reports whether it fits in the
// current window. Keys are case-folded so "User@" and "user@" share a
// budget.
func (l *Limiter) Allow(key string) bool {
	key = "subject_limit:" + strings.ToLower(key)

	count, resetTime, exists := l.store.Get(key)
	if !exists {
		resetTime = time.Now().Add(l.period)
	}
	if count >= l.rate {
		return false
	}

	l.store.Increment(key, resetTime)
	return true
}
