// Package resilience guards calls to an unreliable backend with bounded
// retries and a circuit breaker.
//
// A Policy retries transient failures with exponential backoff and jitter.
// Every attempt passes through a shared Breaker; after a run of consecutive
// transient failures across all operations the breaker opens and further
// attempts fail fast with ErrCircuitOpen until a cool-down elapses. The first
// call after the cool-down is a probe: success closes the breaker, failure
// re-opens it with a doubled (capped) cool-down.
//
//	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig(), logger)
//	policy := resilience.NewPolicy(resilience.DefaultRetryConfig(), breaker, generation.IsTransient, logger)
//	questions, err := resilience.Do(ctx, policy, "question", func(ctx context.Context) ([]string, error) {
//	    return client.Questions(ctx, segment, size)
//	})
package resilience
