package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/resilkit/observability"
)

// Metrics holds the otel instruments recorded by resilience primitives.
// A nil *Metrics records nothing.
type Metrics struct {
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
	attempts    metric.Int64Counter
	inFlight    metric.Int64UpDownCounter
	wait        metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	transitions, err := meter.Int64Counter("resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.breaker.transitions counter: %w", err)
	}

	rejections, err := meter.Int64Counter("resilience.breaker.rejections",
		metric.WithDescription("Calls rejected by an open circuit breaker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.breaker.rejections counter: %w", err)
	}

	attempts, err := meter.Int64Counter("resilience.retry.attempts",
		metric.WithDescription("Operation attempts made by retry policies"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.retry.attempts counter: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter("resilience.pool.inflight",
		metric.WithDescription("Operations currently executing inside a pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.pool.inflight counter: %w", err)
	}

	wait, err := meter.Float64Histogram("resilience.pool.wait",
		metric.WithDescription("Time spent waiting for a pool slot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.pool.wait histogram: %w", err)
	}

	return &Metrics{
		transitions: transitions,
		rejections:  rejections,
		attempts:    attempts,
		inFlight:    inFlight,
		wait:        wait,
	}, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments on the global meter provider. They
// forward to whatever provider observability.Setup installs later.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(observability.Meter())
		if err == nil {
			defaultMetrics = m
		}
	})
	return defaultMetrics
}

func (m *Metrics) breakerTransition(ctx context.Context, breaker string, from, to State) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *Metrics) breakerRejected(ctx context.Context, breaker string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", breaker)))
}

func (m *Metrics) retryAttempt(ctx context.Context, policy string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) poolInFlight(ctx context.Context, pool string, delta int64) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, delta, metric.WithAttributes(attribute.String("pool", pool)))
}

func (m *Metrics) poolWait(ctx context.Context, pool string, d time.Duration, acquired bool) {
	if m == nil {
		return
	}
	m.wait.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("pool", pool),
		attribute.Bool("acquired", acquired),
	))
}
