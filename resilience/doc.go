// Package resilience provides in-process fault-tolerance primitives.
//
//   - CircuitBreaker: fails fast once an operation keeps failing
//   - RetryPolicy: re-invokes an operation with Fixed, Linear or Exponential backoff
//   - Pool: a named bulkhead bounding concurrent executions
//   - RateLimiter: a token bucket in front of an operation
//
// Every primitive wraps an Operation and is usable on its own. Pipeline
// composes them in a fixed order:
//
//	pipe := resilience.NewPipeline("inventory",
//	    resilience.WithRateLimiter(rl),
//	    resilience.WithPool(pool),
//	    resilience.WithBreaker(cb),
//	    resilience.WithRetry(policy),
//	)
//	err := pipe.Execute(ctx, func(ctx context.Context) error {
//	    return inventory.Reserve(ctx, sku)
//	})
//
// KindOf classifies the error of any primitive: an operation failure, a
// rejected call (circuit open, pool wait, rate limit) or cancellation.
package resilience
