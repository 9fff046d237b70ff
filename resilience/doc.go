// Package resilience guards calls to the rate-limited management API.
//
// RateLimiter is a token bucket: Wait blocks until a token is available so
// a burst of cache misses is spread out instead of tripping the provider's
// throttling, and Execute rejects immediately with a RATE_LIMITED error for
// callers that prefer to fail fast.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "compute", Rate: 5, Burst: 10})
//	err := rl.ExecuteWait(ctx, func() error {
//	    instances, err = origin.ListInstances(ctx, group)
//	    return err
//	})
package resilience
