package ratelimit

import (
	"context"
)

// APILimiter caps requests per caller on the public API.
type APILimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAPILimiter(bucket *TokenBucket, rate float64, burst int) *APILimiter {
	if burst <= 0 {
		burst = 1
	}
	return &APILimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *APILimiter) Enabled() bool { return l != nil && l.bucket != nil && l.rate > 0 }

// Allow takes a token from the caller's bucket.
func (l *APILimiter) Allow(ctx context.Context, caller string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, "api:"+caller, l.rate, l.burst)
}
