package discovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/resilkit/component"
	"github.com/kbukum/resilkit/logger"
)

var _ component.Component = (*Registry)(nil)

// PollHealth probes every registered service once and records the results.
// Probes run concurrently up to RegistryConfig.Concurrency, each bounded by
// ProbeTimeout. A result is dropped when the service was re-registered with a
// different endpoint while its probe was running, or when ctx ended before the
// probe returned; those services keep their previous status and are left out
// of the summary.
func (r *Registry) PollHealth(ctx context.Context) PollSummary {
	start := r.now()
	targets := r.ListAll()

	var healthy, unhealthy atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)

	for _, d := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := r.runProbe(ctx, d)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				unhealthy.Add(1)
			} else {
				healthy.Add(1)
			}
			r.apply(d, err)
			return nil
		})
	}
	_ = g.Wait()

	summary := PollSummary{
		Healthy:   int(healthy.Load()),
		Unhealthy: int(unhealthy.Load()),
		Duration:  r.now().Sub(start),
	}
	summary.Checked = summary.Healthy + summary.Unhealthy

	r.log.Debug("health poll finished", logger.Fields(
		"checked", summary.Checked,
		"healthy", summary.Healthy,
		"unhealthy", summary.Unhealthy,
		logger.FieldDuration, summary.Duration.Milliseconds(),
	))
	return summary
}

func (r *Registry) runProbe(ctx context.Context, d ServiceDescriptor) (err error) {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()

	err = r.probe(pctx, d)
	if err == nil && pctx.Err() != nil {
		err = pctx.Err()
	}
	return err
}

func (r *Registry) apply(probed ServiceDescriptor, err error) {
	healthy := err == nil

	r.mu.Lock()
	cur, ok := r.services[probed.Name]
	if !ok || cur.Endpoint != probed.Endpoint {
		r.mu.Unlock()
		return
	}
	was := cur.Healthy
	cur.Healthy = healthy
	cur.LastChecked = r.now()
	snapshot := *cur
	r.mu.Unlock()

	if was == healthy {
		return
	}

	fields := logger.Fields(
		logger.FieldService, probed.Name,
		logger.FieldEndpoint, probed.Endpoint,
		logger.FieldHealthy, healthy,
	)
	if healthy {
		r.log.Info("service recovered", fields)
	} else {
		r.log.Warn("service unhealthy", logger.MergeWithError(fields, err))
	}
	r.publish(snapshot)
}

// Name implements component.Component.
func (r *Registry) Name() string { return "registry" }

// Start launches the background polling loop. It polls once immediately and
// then every PollInterval until ctx ends or Stop is called. Calling Start on
// a running registry is a no-op.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	if r.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(loopCtx, r.done)
	r.log.Info("health polling started", logger.Fields("interval_ms", r.cfg.PollInterval.Milliseconds()))
	return nil
}

// Stop ends the polling loop and waits for an in-progress poll to finish or
// for ctx to end.
func (r *Registry) Stop(ctx context.Context) error {
	r.loopMu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.loopMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		r.log.Info("health polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.PollHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PollHealth(ctx)
		}
	}
}
