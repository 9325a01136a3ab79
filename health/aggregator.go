package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/observability"
)

// DefaultTimeout is the per-probe deadline when none is configured.
const DefaultTimeout = 5 * time.Second

// Config configures an Aggregator from file or environment.
type Config struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-probe deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithClock overrides time.Now for CheckedAt and durations.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator runs registered probes and combines their results.
type Aggregator struct {
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewAggregator creates an Aggregator with no probes.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		timeout: DefaultTimeout,
		now:     time.Now,
		probes:  make(map[string]Probe),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get("health")
	}
	return a
}

// RegisterCheck adds a named probe. Names must be unique and non-empty.
func (a *Aggregator) RegisterCheck(name string, probe Probe) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidInput("name", "check name must not be empty")
	}
	if probe == nil {
		return errors.InvalidInput("probe", "probe must not be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.probes[name]; exists {
		return errors.AlreadyExists("health check").WithDetail(logger.FieldCheck, name)
	}
	a.probes[name] = probe
	return nil
}

// Checks returns the registered check names, sorted.
func (a *Aggregator) Checks() []string {
	a.mu.RLock()
	names := make([]string, 0, len(a.probes))
	for name := range a.probes {
		names = append(names, name)
	}
	a.mu.RUnlock()
	sort.Strings(names)
	return names
}

// CheckHealth runs every probe concurrently and returns the combined report.
// An empty aggregator reports Healthy.
func (a *Aggregator) CheckHealth(ctx context.Context) Report {
	ctx, span := observability.StartSpan(ctx, "health.check")
	defer span.End()

	a.mu.RLock()
	probes := make(map[string]Probe, len(a.probes))
	for name, p := range a.probes {
		probes[name] = p
	}
	a.mu.RUnlock()

	start := a.now()
	var (
		mu      sync.Mutex
		entries = make(map[string]Result, len(probes))
	)

	g := new(errgroup.Group)
	for name, p := range probes {
		g.Go(func() error {
			r := a.run(ctx, p)
			mu.Lock()
			entries[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for name, r := range entries {
		overall = Worst(overall, r.Status)
		if r.Status != StatusHealthy {
			a.log.Warn("health check not healthy", logger.Fields(
				logger.FieldCheck, name,
				logger.FieldStatus, string(r.Status),
				"description", r.Description,
			))
		}
	}

	span.SetAttributes(
		attribute.String(observability.AttrHealthStatus, string(overall)),
		attribute.Int(observability.AttrHealthChecks, len(entries)),
	)

	return Report{
		Status:        overall,
		TotalDuration: a.now().Sub(start),
		Entries:       entries,
		CheckedAt:     start,
	}
}

type outcome struct {
	result   Result
	panicked any
}

// run executes one probe in its own goroutine so a probe that ignores ctx
// still times out. The goroutine of such a probe is abandoned.
func (a *Aggregator) run(ctx context.Context, p Probe) Result {
	pctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := a.now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{panicked: rec}
			}
		}()
		done <- outcome{result: p.CheckHealth(pctx)}
	}()

	var r Result
	select {
	case o := <-done:
		if o.panicked != nil {
			r = Unhealthy(fmt.Sprintf("check panicked: %v", o.panicked))
		} else {
			r = o.result
		}
	case <-pctx.Done():
		if ctx.Err() != nil {
			r = Unhealthy(fmt.Sprintf("check canceled: %v", ctx.Err()))
		} else {
			r = Unhealthy(fmt.Sprintf("check timed out after %s", a.timeout))
		}
	}

	if r.Status == "" {
		r.Status = StatusUnhealthy
	}
	if r.Duration == 0 {
		r.Duration = a.now().Sub(start)
	}
	return r
}
