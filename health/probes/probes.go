// Package probes adapts resilkit components to health.Probe.
package probes

import (
	"context"
	"fmt"

	"github.com/kbukum/resilkit/discovery"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/resilience"
)

// Breaker reports Open as Unhealthy and HalfOpen as Degraded.
func Breaker(cb *resilience.CircuitBreaker) health.Probe {
	return health.ProbeFunc(func(context.Context) health.Result {
		snap := cb.Snapshot()

		var r health.Result
		switch snap.State {
		case resilience.StateOpen:
			r = health.Unhealthy(fmt.Sprintf("circuit %s is open", cb.Name()))
		case resilience.StateHalfOpen:
			r = health.Degraded(fmt.Sprintf("circuit %s is probing recovery", cb.Name()))
		default:
			r = health.Healthy(fmt.Sprintf("circuit %s is closed", cb.Name()))
		}
		return r.
			WithData("state", snap.State.String()).
			WithData("consecutive_failures", snap.ConsecutiveFailures)
	})
}

// Pool reports Degraded once the in-flight share of the pool reaches
// degradedRatio. A ratio outside (0, 1] defaults to 1, meaning only a full
// pool is degraded.
func Pool(p *resilience.Pool, degradedRatio float64) health.Probe {
	if degradedRatio <= 0 || degradedRatio > 1 {
		degradedRatio = 1
	}
	return health.ProbeFunc(func(context.Context) health.Result {
		stats := p.Stats()
		utilization := float64(stats.InFlight) / float64(stats.MaxConcurrency)

		r := health.Healthy(fmt.Sprintf("pool %s has %d of %d slots in use", stats.Name, stats.InFlight, stats.MaxConcurrency))
		if utilization >= degradedRatio {
			r.Status = health.StatusDegraded
		}
		return r.
			WithData("in_flight", stats.InFlight).
			WithData("waiting", stats.Waiting).
			WithData("max_concurrency", stats.MaxConcurrency).
			WithData("rejected", stats.Rejected)
	})
}

// Registry reports Degraded when some registered services are unhealthy and
// Unhealthy when all of them are. An empty registry is Healthy.
func Registry(reg *discovery.Registry) health.Probe {
	return health.ProbeFunc(func(context.Context) health.Result {
		services := reg.ListAll()

		var down []string
		for _, d := range services {
			if !d.Healthy {
				down = append(down, d.Name)
			}
		}

		var r health.Result
		switch {
		case len(services) == 0:
			r = health.Healthy("no services registered")
		case len(down) == 0:
			r = health.Healthy(fmt.Sprintf("%d services healthy", len(services)))
		case len(down) == len(services):
			r = health.Unhealthy("all services unhealthy")
		default:
			r = health.Degraded(fmt.Sprintf("%d of %d services unhealthy", len(down), len(services)))
		}
		r = r.WithData("services", len(services))
		if len(down) > 0 {
			r = r.WithData("unhealthy", down)
		}
		return r
	})
}
