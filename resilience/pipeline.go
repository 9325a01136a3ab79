package resilience

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/resilkit/observability"
)

// Pipeline composes optional stages around an operation. The order is fixed,
// outermost first: rate limiter, pool, circuit breaker, retry. The breaker
// therefore sees one outcome per pipeline call, after retries.
// Nil stages are skipped, so an empty pipeline is a traced passthrough.
type Pipeline struct {
	name    string
	limiter *RateLimiter
	pool    *Pool
	breaker *CircuitBreaker
	retry   *RetryPolicy
}

// PipelineOption adds a stage to a Pipeline.
type PipelineOption func(*Pipeline)

// WithRateLimiter adds a rate limiter stage.
func WithRateLimiter(rl *RateLimiter) PipelineOption {
	return func(p *Pipeline) { p.limiter = rl }
}

// WithPool adds a bulkhead stage.
func WithPool(pool *Pool) PipelineOption {
	return func(p *Pipeline) { p.pool = pool }
}

// WithBreaker adds a circuit breaker stage.
func WithBreaker(cb *CircuitBreaker) PipelineOption {
	return func(p *Pipeline) { p.breaker = cb }
}

// WithRetry adds a retry stage.
func WithRetry(policy *RetryPolicy) PipelineOption {
	return func(p *Pipeline) { p.retry = policy }
}

// NewPipeline builds a pipeline.
func NewPipeline(name string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{name: name}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Breaker returns the breaker stage, or nil.
func (p *Pipeline) Breaker() *CircuitBreaker {
	return p.breaker
}

// Pool returns the pool stage, or nil.
func (p *Pipeline) Pool() *Pool {
	return p.pool
}

// Execute runs op through every configured stage inside one span.
func (p *Pipeline) Execute(ctx context.Context, op Operation) error {
	ctx, span := observability.StartSpan(ctx, "resilience.pipeline",
		attribute.String(observability.AttrPipeline, p.name),
	)

	attempts := 0
	counted := func(ctx context.Context) error {
		attempts++
		return op(ctx)
	}

	err := p.wrap(counted)(ctx)

	span.SetAttributes(
		attribute.Int(observability.AttrAttempts, attempts),
		attribute.String(observability.AttrFailureKind, KindOf(err).String()),
	)
	if p.breaker != nil {
		span.SetAttributes(attribute.String(observability.AttrBreakerState, p.breaker.State().String()))
	}
	observability.EndSpan(span, err)
	return err
}

// Run executes fn through p and returns its result.
func Run[T any](ctx context.Context, p *Pipeline, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// wrap builds the stage chain from the inside out.
func (p *Pipeline) wrap(op Operation) Operation {
	if p.retry != nil {
		inner := op
		op = func(ctx context.Context) error { return p.retry.Execute(ctx, inner) }
	}
	if p.breaker != nil {
		inner := op
		op = func(ctx context.Context) error { return p.breaker.Execute(ctx, inner) }
	}
	if p.pool != nil {
		inner := op
		op = func(ctx context.Context) error { return p.pool.Execute(ctx, inner) }
	}
	if p.limiter != nil {
		inner := op
		op = func(ctx context.Context) error { return p.limiter.Execute(ctx, inner) }
	}
	return op
}
