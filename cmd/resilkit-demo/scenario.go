package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/order"
	"github.com/kbukum/resilkit/resilience"
)

// flakyDependency fails its first n calls and succeeds afterwards.
type flakyDependency struct {
	name     string
	failures int64
	calls    atomic.Int64
}

func (f *flakyDependency) Call(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.calls.Add(1) <= f.failures {
		return errors.ServiceUnavailable(f.name)
	}
	return nil
}

// driveFlaky pushes cfg.Calls calls through the breaker pipeline and counts
// how each one ended by failure kind. Breaker trips are expected and are not
// returned as errors.
func (s *system) driveFlaky(ctx context.Context, cfg DemoConfig, log *logger.Logger) (map[string]int, error) {
	dep := &flakyDependency{name: s.breaker.Name(), failures: int64(cfg.FlakyFailures)}

	outcomes := make(map[string]int)
	for i := range cfg.Calls {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return outcomes, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}

		err := s.flaky.Execute(ctx, dep.Call)
		kind := resilience.KindOf(err)
		outcomes[kind.String()]++

		fields := logger.Fields(
			"call", i+1,
			logger.FieldBreaker, s.breaker.Name(),
			logger.FieldState, s.breaker.State().String(),
			"outcome", kind.String(),
		)
		if kind == resilience.KindCanceled {
			return outcomes, err
		}
		if err != nil {
			log.Warn("dependency call failed", logger.MergeWithError(fields, err))
			continue
		}
		log.Info("dependency call succeeded", fields)
	}

	log.Info("flaky scenario finished", logger.Fields(
		"invocations", dep.calls.Load(),
		"outcomes", outcomes,
		logger.FieldState, s.breaker.State().String(),
	))
	return outcomes, nil
}

// driveOrder creates, fills and confirms one order, then reads it back
// through the read pipeline.
func (s *system) driveOrder(ctx context.Context, log *logger.Logger) error {
	id := uuid.NewString()

	steps := []func() error{
		func() error { return s.orders.CreateOrder(ctx, id, "customer-42") },
		func() error { return s.orders.AddItem(ctx, id, "sku-widget", decimal.RequireFromString("19.99"), 2) },
		func() error { return s.orders.AddItem(ctx, id, "sku-gadget", decimal.RequireFromString("5.50"), 1) },
		func() error { return s.orders.ConfirmOrder(ctx, id) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if err := s.orders.AddItem(ctx, id, "sku-late", decimal.NewFromInt(1), 1); err != nil {
		log.Info("late item rejected", logger.MergeWithError(logger.Fields("order_id", id), err))
	}

	st, err := resilience.Run(ctx, s.reads, func(ctx context.Context) (order.State, error) {
		return s.orders.GetState(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Info("order replayed", logger.Fields(
		"order_id", st.ID,
		logger.FieldStatus, string(st.Status),
		"items", len(st.Items),
		"total", st.TotalAmount.StringFixed(2),
		logger.FieldVersion, st.Version,
		"codec", s.orders.Codec().Name(),
		"events", s.store.Len(),
	))
	return nil
}
