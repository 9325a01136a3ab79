package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/validation"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls until the recovery timeout has elapsed.
	StateOpen
	// StateHalfOpen lets a single trial call through.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is wrapped by every rejection of an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in errors, logs and metrics.
	Name string `yaml:"name" mapstructure:"name"`
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before a trial call.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// ApplyDefaults fills zero values from DefaultCircuitBreakerConfig.
func (c *CircuitBreakerConfig) ApplyDefaults() {
	def := DefaultCircuitBreakerConfig(c.Name)
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
}

// Validate checks the configuration.
func (c *CircuitBreakerConfig) Validate() error {
	return validation.New().
		Required("name", c.Name).
		Min("failure_threshold", c.FailureThreshold, 1).
		Positive("recovery_timeout", c.RecoveryTimeout).
		Validate()
}

// BreakerSnapshot is a consistent copy of the breaker's mutable state.
type BreakerSnapshot struct {
	State               State
	ConsecutiveFailures int
	LastFailureTime     time.Time
}

// CircuitBreaker guards one logical operation.
//
// Closed counts consecutive failures and opens at the threshold. Open
// rejects with ErrCircuitOpen until RecoveryTimeout has passed since the
// last failure; the next caller then moves the breaker to HalfOpen and runs
// the single trial. While the trial is in flight other callers are rejected.
// A successful trial closes the breaker, a failed one reopens it.
type CircuitBreaker struct {
	config  CircuitBreakerConfig
	log     *logger.Logger
	metrics *Metrics
	now     func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	lastFailureTime time.Time
	trialInFlight   bool
}

type transition struct {
	from, to State
}

// NewCircuitBreaker creates a closed circuit breaker. Zero config values are
// replaced by defaults.
func NewCircuitBreaker(config CircuitBreakerConfig, opts ...Option) *CircuitBreaker {
	config.ApplyDefaults()
	o := buildOptions("breaker", opts)
	return &CircuitBreaker{
		config:  config,
		log:     o.log.WithFields(logger.Fields(logger.FieldBreaker, config.Name)),
		metrics: o.metrics,
		now:     o.clock,
		state:   StateClosed,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs op through the breaker. A rejected call returns a
// CIRCUIT_OPEN AppError wrapping ErrCircuitOpen and op is not invoked.
// Errors from op are returned unchanged. A panic in op counts as a failure
// and is re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	trial, ok, tr := cb.admit()
	cb.notify(ctx, tr)
	if !ok {
		cb.metrics.breakerRejected(ctx, cb.config.Name)
		return goerrors.CircuitOpen(cb.config.Name).WithCause(ErrCircuitOpen)
	}

	defer func() {
		if r := recover(); r != nil {
			cb.notify(ctx, cb.record(trial, fmt.Errorf("panic: %v", r)))
			panic(r)
		}
	}()

	err := op(ctx)
	cb.notify(ctx, cb.record(trial, err))
	return err
}

// Guard runs fn through cb and returns its result.
func Guard[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
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

// State returns the current state. An open breaker whose recovery timeout has
// elapsed still reports open until the next call arrives.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns state and counters read under the same lock.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		LastFailureTime:     cb.lastFailureTime,
	}
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	tr := cb.toState(StateClosed)
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.trialInFlight = false
	cb.mu.Unlock()

	cb.notify(context.Background(), tr)
}

// admit decides whether a call may run and whether it is the half-open trial.
func (cb *CircuitBreaker) admit() (trial, ok bool, tr *transition) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true, nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.config.RecoveryTimeout {
			return false, false, nil
		}
		tr = cb.toState(StateHalfOpen)
		cb.trialInFlight = true
		return true, true, tr
	default:
		if cb.trialInFlight {
			return false, false, nil
		}
		cb.trialInFlight = true
		return true, true, nil
	}
}

// record applies the outcome of an admitted call. Results of calls admitted
// while closed that finish after the breaker tripped are ignored.
func (cb *CircuitBreaker) record(trial bool, err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialInFlight = false
		if err == nil {
			cb.failures = 0
			return cb.toState(StateClosed)
		}
		cb.lastFailureTime = cb.now()
		return cb.toState(StateOpen)
	}

	if cb.state != StateClosed {
		return nil
	}
	if err == nil {
		cb.failures = 0
		return nil
	}
	cb.failures++
	if cb.failures >= cb.config.FailureThreshold {
		cb.lastFailureTime = cb.now()
		return cb.toState(StateOpen)
	}
	return nil
}

// toState must be called with mu held.
func (cb *CircuitBreaker) toState(to State) *transition {
	if cb.state == to {
		return nil
	}
	from := cb.state
	cb.state = to
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(ctx context.Context, tr *transition) {
	if tr == nil {
		return
	}

	fields := logger.Fields(logger.FieldFromState, tr.from.String(), logger.FieldToState, tr.to.String())
	if tr.to == StateOpen {
		cb.log.Warn("circuit opened", fields)
	} else {
		cb.log.Info("circuit state changed", fields)
	}
	cb.metrics.breakerTransition(ctx, cb.config.Name, tr.from, tr.to)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, tr.from, tr.to)
	}
}
