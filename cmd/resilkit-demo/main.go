// Command resilkit-demo wires every resilkit component into one process and
// drives a short scenario through them: a flaky dependency behind a pool,
// breaker and retry pipeline, and an event-sourced order.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/kbukum/resilkit/bootstrap"
	"github.com/kbukum/resilkit/config"
	"github.com/kbukum/resilkit/discovery"
	"github.com/kbukum/resilkit/eventstore"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/health/probes"
	"github.com/kbukum/resilkit/observability"
	"github.com/kbukum/resilkit/order"
	"github.com/kbukum/resilkit/resilience"
	"github.com/kbukum/resilkit/server"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// system holds what the scenario and the HTTP routes share.
type system struct {
	registry *discovery.Registry
	pools    *resilience.PoolRegistry
	breaker  *resilience.CircuitBreaker
	flaky    *resilience.Pipeline
	reads    *resilience.Pipeline
	store    *eventstore.MemoryStore
	orders   *order.Service
}

func run(ctx context.Context) error {
	var cfg AppConfig
	if err := config.LoadConfig("resilkit-demo", &cfg, config.WithEnvPrefix("RESILKIT")); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(&cfg, bootstrap.WithHealth(health.WithTimeout(cfg.Health.Timeout)))
	if err != nil {
		return err
	}

	sys, err := build(&cfg)
	if err != nil {
		return err
	}

	if err := app.RegisterComponent(observability.NewComponent(cfg.Observability, app.Logger.WithComponent("telemetry"))); err != nil {
		return err
	}
	if err := app.RegisterComponent(sys.registry); err != nil {
		return err
	}
	if cfg.HTTP.Enabled {
		srv := server.New(cfg.HTTP, app.Logger.WithComponent("http"))
		if err := srv.ApplyMiddleware(resilience.WithMetrics(resilience.DefaultMetrics())); err != nil {
			return err
		}
		sys.routes(srv, app.Health)
		if err := app.RegisterComponent(srv); err != nil {
			return err
		}
	}

	app.OnConfigure(func(ctx context.Context, app *bootstrap.App[*AppConfig]) error {
		return sys.registerChecks(app.Health)
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		if _, err := sys.driveFlaky(ctx, cfg.Demo, app.Logger.WithComponent("scenario")); err != nil {
			return err
		}
		if err := sys.driveOrder(ctx, app.Logger.WithComponent("scenario")); err != nil {
			return err
		}
		if !cfg.HTTP.Enabled {
			return nil
		}
		app.Logger.Info("scenario finished, serving until shutdown")
		<-ctx.Done()
		return nil
	})
}

func build(cfg *AppConfig) (*system, error) {
	opts := []resilience.Option{resilience.WithMetrics(resilience.DefaultMetrics())}

	sys := &system{
		registry: discovery.NewRegistry(cfg.Registry, serviceProbe(&http.Client{})),
		pools:    resilience.NewPoolRegistry(opts...),
		breaker:  resilience.NewCircuitBreaker(cfg.Breaker, opts...),
		store:    eventstore.NewMemoryStore(),
	}

	for _, s := range cfg.Services {
		if err := sys.registry.Register(s.Name, s.Endpoint, s.Version); err != nil {
			return nil, err
		}
	}

	var first *resilience.Pool
	for _, pc := range cfg.Pools {
		p, err := sys.pools.CreatePoolWithConfig(pc)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = p
		}
	}

	retry, err := resilience.NewRetryPolicy(cfg.Retry, opts...)
	if err != nil {
		return nil, err
	}
	sys.flaky = resilience.NewPipeline(cfg.Breaker.Name,
		resilience.WithPool(first),
		resilience.WithBreaker(sys.breaker),
		resilience.WithRetry(retry),
	)
	sys.reads = resilience.NewPipeline("order-reads", resilience.WithPool(first))

	codec, err := eventstore.CodecByName(cfg.Demo.Codec)
	if err != nil {
		return nil, err
	}
	orderOpts := []order.Option{order.WithCodec(codec)}
	if cfg.Demo.StrictOrders {
		orderOpts = append(orderOpts, order.WithStrictTransitions())
	}
	sys.orders = order.NewService(sys.store, orderOpts...)
	return sys, nil
}

func (s *system) registerChecks(agg *health.Aggregator) error {
	if err := agg.RegisterCheck("registry", probes.Registry(s.registry)); err != nil {
		return err
	}
	if err := agg.RegisterCheck("breaker."+s.breaker.Name(), probes.Breaker(s.breaker)); err != nil {
		return err
	}
	for _, st := range s.pools.Pools() {
		p, _ := s.pools.Pool(st.Name)
		if err := agg.RegisterCheck("pool."+st.Name, probes.Pool(p, 0.8)); err != nil {
			return err
		}
	}
	return nil
}

// serviceProbe checks http(s) endpoints over the network. "down://" endpoints
// always fail and any other scheme is treated as an in-process stub.
func serviceProbe(client *http.Client) discovery.Probe {
	httpProbe := discovery.HTTPProbe(client, "/healthz")
	return func(ctx context.Context, d discovery.ServiceDescriptor) error {
		switch {
		case strings.HasPrefix(d.Endpoint, "http://"), strings.HasPrefix(d.Endpoint, "https://"):
			return httpProbe(ctx, d)
		case strings.HasPrefix(d.Endpoint, "down://"):
			return fmt.Errorf("%s is simulated down", d.Name)
		default:
			return nil
		}
	}
}
