package mcpwire

import (
	"context"
	"time"
)

// resilience composes the dedup cache, circuit breaker, and retry policy
// around one fallible operation, outermost first: a cache hit skips
// everything, a breaker rejection is never retried, and only the innermost
// retry loop re-invokes the operation.
type resilience struct {
	dedup    *DedupCache
	dedupTTL time.Duration
	breakers *breakerSet
	retry    retryPolicy
}

// run executes op for the given endpoint under the full stack. key is the
// idempotency key; an empty key bypasses the dedup layer (used for
// notifications and outbound sends that carry fresh ids).
func (w resilience) run(
	ctx context.Context,
	endpoint, key string,
	op func(ctx context.Context) (any, error),
) (any, error) {
	compute := func(ctx context.Context) (any, error) {
		return w.breakers.execute(endpoint, func() (any, error) {
			return w.retry.execute(ctx, func() (any, error) {
				return op(ctx)
			})
		})
	}

	if w.dedup == nil || key == "" {
		return compute(ctx)
	}
	return w.dedup.GetOrCompute(ctx, key, w.dedupTTL, compute)
}
