package probes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/resilkit/discovery"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/resilience"
)

var errDown = errors.New("down")

func quiet() resilience.Option { return resilience.WithLogger(logger.NewNop()) }

func TestBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "payments",
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
	}, quiet())
	probe := Breaker(cb)
	ctx := context.Background()

	if r := probe.CheckHealth(ctx); r.Status != health.StatusHealthy {
		t.Fatalf("closed breaker should be healthy, got %s", r.Status)
	}

	_ = cb.Execute(ctx, func(context.Context) error { return errDown })
	r := probe.CheckHealth(ctx)
	if r.Status != health.StatusUnhealthy {
		t.Fatalf("open breaker should be unhealthy, got %s", r.Status)
	}
	if r.Data["state"] != "open" {
		t.Errorf("expected state data open, got %v", r.Data["state"])
	}

	time.Sleep(30 * time.Millisecond)
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	if r := probe.CheckHealth(ctx); r.Status != health.StatusDegraded {
		t.Errorf("half-open breaker should be degraded, got %s", r.Status)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial failed: %v", err)
	}
	if r := probe.CheckHealth(ctx); r.Status != health.StatusHealthy {
		t.Errorf("recovered breaker should be healthy, got %s", r.Status)
	}
}

func TestPool(t *testing.T) {
	pool, err := resilience.NewPool(resilience.PoolConfig{Name: "db", MaxConcurrency: 2}, quiet())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	probe := Pool(pool, 0.5)
	ctx := context.Background()

	if r := probe.CheckHealth(ctx); r.Status != health.StatusHealthy {
		t.Fatalf("idle pool should be healthy, got %s", r.Status)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Execute(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	r := probe.CheckHealth(ctx)
	if r.Status != health.StatusDegraded {
		t.Errorf("half-full pool at ratio 0.5 should be degraded, got %s", r.Status)
	}
	if r.Data["in_flight"] != 1 {
		t.Errorf("expected in_flight=1, got %v", r.Data["in_flight"])
	}

	if r := Pool(pool, 0).CheckHealth(ctx); r.Status != health.StatusHealthy {
		t.Errorf("default ratio only degrades a full pool, got %s", r.Status)
	}

	close(release)
	<-done
}

func TestRegistry(t *testing.T) {
	down := map[string]bool{}
	reg := discovery.NewRegistry(discovery.RegistryConfig{}, func(_ context.Context, d discovery.ServiceDescriptor) error {
		if down[d.Name] {
			return errDown
		}
		return nil
	}, discovery.WithLogger(logger.NewNop()))
	probe := Registry(reg)
	ctx := context.Background()

	if r := probe.CheckHealth(ctx); r.Status != health.StatusHealthy {
		t.Fatalf("empty registry should be healthy, got %s", r.Status)
	}

	_ = reg.Register("a", "a:1", "1")
	_ = reg.Register("b", "b:1", "1")

	tests := []struct {
		name string
		down map[string]bool
		want health.Status
	}{
		{"all healthy", map[string]bool{}, health.StatusHealthy},
		{"some down", map[string]bool{"b": true}, health.StatusDegraded},
		{"all down", map[string]bool{"a": true, "b": true}, health.StatusUnhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			down = tc.down
			reg.PollHealth(ctx)
			if r := probe.CheckHealth(ctx); r.Status != tc.want {
				t.Errorf("expected %s, got %s", tc.want, r.Status)
			}
		})
	}
}
