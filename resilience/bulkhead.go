package resilience

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	goerrors "github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/validation"
)

// ErrPoolWaitTimeout is wrapped when no pool slot frees up within MaxWait.
var ErrPoolWaitTimeout = errors.New("timed out waiting for a pool slot")

// PoolConfig configures a bulkhead pool.
type PoolConfig struct {
	// Name identifies the pool.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxConcurrency is the number of operations that may run at once.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	// MaxWait bounds the time spent waiting for a slot. Zero waits until
	// the caller's context ends.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// Validate checks the configuration.
func (c *PoolConfig) Validate() error {
	return validation.New().
		Required("name", c.Name).
		Min("max_concurrency", c.MaxConcurrency, 1).
		NonNegative("max_wait", c.MaxWait).
		Validate()
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	Name           string `json:"name"`
	MaxConcurrency int    `json:"max_concurrency"`
	InFlight       int    `json:"in_flight"`
	Waiting        int    `json:"waiting"`
	Completed      uint64 `json:"completed"`
	Rejected       uint64 `json:"rejected"`
}

// Pool is a bulkhead: at most MaxConcurrency operations execute at once and
// waiters are admitted in FIFO order.
type Pool struct {
	config  PoolConfig
	sem     *semaphore.Weighted
	log     *logger.Logger
	metrics *Metrics
	now     func() time.Time

	inFlight  atomic.Int64
	waiting   atomic.Int64
	completed atomic.Uint64
	rejected  atomic.Uint64
}

// NewPool creates a standalone pool. Most callers use PoolRegistry instead.
func NewPool(config PoolConfig, opts ...Option) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions("pool", opts)
	return &Pool{
		config:  config,
		sem:     semaphore.NewWeighted(int64(config.MaxConcurrency)),
		log:     o.log.WithFields(logger.Fields(logger.FieldPool, config.Name)),
		metrics: o.metrics,
		now:     o.clock,
	}, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.config.Name
}

// Config returns the pool configuration.
func (p *Pool) Config() PoolConfig {
	return p.config
}

// Execute waits for a slot, runs op and releases the slot on every exit path,
// panics included. A wait that exceeds MaxWait returns a POOL_WAIT_TIMEOUT
// AppError wrapping ErrPoolWaitTimeout; a wait ended by ctx returns ctx.Err().
func (p *Pool) Execute(ctx context.Context, op Operation) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release(ctx)
	return op(ctx)
}

// ExecuteWithResult runs fn inside p and returns its result.
func ExecuteWithResult[T any](p *Pool, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
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

// Stats returns current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Name:           p.config.Name,
		MaxConcurrency: p.config.MaxConcurrency,
		InFlight:       int(p.inFlight.Load()),
		Waiting:        int(p.waiting.Load()),
		Completed:      p.completed.Load(),
		Rejected:       p.rejected.Load(),
	}
}

// Available returns the number of free slots.
func (p *Pool) Available() int {
	return p.config.MaxConcurrency - int(p.inFlight.Load())
}

func (p *Pool) acquire(ctx context.Context) error {
	waitCtx := ctx
	if p.config.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.config.MaxWait)
		defer cancel()
	}

	start := p.now()
	p.waiting.Add(1)
	err := p.sem.Acquire(waitCtx, 1)
	p.waiting.Add(-1)
	p.metrics.poolWait(ctx, p.config.Name, p.now().Sub(start), err == nil)

	if err != nil {
		p.rejected.Add(1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.log.Warn("pool wait timed out", logger.Fields("max_wait_ms", p.config.MaxWait.Milliseconds()))
		return goerrors.PoolWaitTimeout(p.config.Name, p.config.MaxWait).WithCause(ErrPoolWaitTimeout)
	}

	p.inFlight.Add(1)
	p.metrics.poolInFlight(ctx, p.config.Name, 1)
	return nil
}

func (p *Pool) release(ctx context.Context) {
	p.inFlight.Add(-1)
	p.completed.Add(1)
	p.metrics.poolInFlight(ctx, p.config.Name, -1)
	p.sem.Release(1)
}

// PoolRegistry owns the named pools of a process. Pools are never removed.
type PoolRegistry struct {
	opts []Option
	log  *logger.Logger

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewPoolRegistry creates an empty registry. opts are passed to every pool.
func NewPoolRegistry(opts ...Option) *PoolRegistry {
	o := buildOptions("pool", opts)
	return &PoolRegistry{
		opts:  opts,
		log:   o.log,
		pools: make(map[string]*Pool),
	}
}

// CreatePool creates a pool with an unbounded wait.
func (r *PoolRegistry) CreatePool(name string, maxConcurrency int) (*Pool, error) {
	return r.CreatePoolWithConfig(PoolConfig{Name: name, MaxConcurrency: maxConcurrency})
}

// CreatePoolWithConfig creates a named pool. Creating a name that exists
// returns the existing pool when the configs match and a CONFLICT AppError
// otherwise.
func (r *PoolRegistry) CreatePoolWithConfig(cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pools[cfg.Name]; ok {
		if existing.config == cfg {
			return existing, nil
		}
		return nil, goerrors.Conflict("pool " + cfg.Name + " already exists with a different configuration").
			WithDetail("pool", cfg.Name)
	}

	p, err := NewPool(cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.pools[cfg.Name] = p
	r.log.Info("pool created", logger.Fields(
		logger.FieldPool, cfg.Name,
		"max_concurrency", cfg.MaxConcurrency,
		"max_wait_ms", cfg.MaxWait.Milliseconds(),
	))
	return p, nil
}

// Pool looks up a pool by name.
func (r *PoolRegistry) Pool(name string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}

// Pools returns stats for every pool, sorted by name.
func (r *PoolRegistry) Pools() []PoolStats {
	r.mu.RLock()
	stats := make([]PoolStats, 0, len(r.pools))
	for _, p := range r.pools {
		stats = append(stats, p.Stats())
	}
	r.mu.RUnlock()

	slices.SortFunc(stats, func(a, b PoolStats) int { return strings.Compare(a.Name, b.Name) })
	return stats
}
