// Package ratelimit enforces fixed-window limits on authentication
// attempts. A memory backend serves single-instance deployments; Redis
// takes over when configured so limits hold across replicas.
package ratelimit

import (
	"context"
	"time"
)

// windowSeconds is the fixed window length for login attempts.
const windowSeconds = 60

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// windowStart returns the Unix second at which the current window began.
func windowStart(now time.Time) int64 {
	sec := now.Unix()
	return sec - sec%windowSeconds
}

// windowReset returns the instant the current window rolls over.
func windowReset(now time.Time) time.Time {
	return time.Unix(windowStart(now)+windowSeconds, 0).UTC()
}
