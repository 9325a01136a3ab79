package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	goerrors "github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/validation"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy int

const (
	// BackoffFixed waits BaseDelay after every failed attempt.
	BackoffFixed BackoffStrategy = iota
	// BackoffLinear waits BaseDelay*n after failed attempt n.
	BackoffLinear
	// BackoffExponential waits BaseDelay*2^(n-1) after failed attempt n.
	BackoffExponential
)

func (s BackoffStrategy) String() string {
	switch s {
	case BackoffFixed:
		return "fixed"
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	default:
		return fmt.Sprintf("BackoffStrategy(%d)", int(s))
	}
}

// ParseBackoffStrategy parses "fixed", "linear" or "exponential".
func ParseBackoffStrategy(s string) (BackoffStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return BackoffFixed, nil
	case "linear":
		return BackoffLinear, nil
	case "exponential":
		return BackoffExponential, nil
	default:
		return 0, goerrors.InvalidInput("strategy", fmt.Sprintf("unknown backoff strategy %q", s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BackoffStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so configs can name the
// strategy.
func (s *BackoffStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseBackoffStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RetryConfig configures a retry policy.
type RetryConfig struct {
	// Name labels the policy in logs and metrics.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxAttempts is the maximum number of invocations, including the first.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// Strategy selects the backoff curve.
	Strategy BackoffStrategy `yaml:"strategy" mapstructure:"strategy"`
	// BaseDelay is the unit the backoff curve is built from.
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// Jitter spreads each delay by up to ±Jitter of its value (0 to 1).
	Jitter float64 `yaml:"jitter" mapstructure:"jitter"`
	// RetryIf reports whether an error is worth another attempt.
	RetryIf func(error) bool `yaml:"-" mapstructure:"-"`
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultRetryConfig returns three exponential attempts starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Strategy:    BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *RetryConfig) Validate() error {
	return validation.New().
		Min("max_attempts", c.MaxAttempts, 1).
		Range("strategy", int(c.Strategy), int(BackoffFixed), int(BackoffExponential)).
		NonNegative("base_delay", c.BaseDelay).
		NonNegative("max_delay", c.MaxDelay).
		FloatRange("jitter", c.Jitter, 0, 1).
		Validate()
}

// DefaultRetryIf retries every error except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryPolicy re-invokes an operation until it succeeds, returns a
// non-retryable error or runs out of attempts. The configuration is fixed at
// construction.
type RetryPolicy struct {
	cfg     RetryConfig
	log     *logger.Logger
	metrics *Metrics
	rand    func() float64
}

// NewRetryPolicy validates cfg and builds a policy.
func NewRetryPolicy(cfg RetryConfig, opts ...Option) (*RetryPolicy, error) {
	if cfg.MaxAttempts < 1 {
		return nil, goerrors.InvalidInput("max_attempts", "must be at least 1")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}

	o := buildOptions("retry", opts)
	log := o.log
	if cfg.Name != "" {
		log = log.WithFields(logger.Fields("policy", cfg.Name))
	}
	return &RetryPolicy{
		cfg:     cfg,
		log:     log,
		metrics: o.metrics,
		rand:    rand.Float64,
	}, nil
}

// Config returns a copy of the policy configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return p.cfg
}

// Delay returns the nominal delay after failed attempt n (1-based), before
// jitter and capped by MaxDelay.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.cfg.BaseDelay)

	var d float64
	switch p.cfg.Strategy {
	case BackoffLinear:
		d = base * float64(attempt)
	case BackoffExponential:
		d = base * math.Pow(2, float64(attempt-1))
	default:
		d = base
	}
	return p.clamp(d)
}

// Execute runs op under the policy. When every attempt fails the last
// attempt's error is returned unchanged.
func (p *RetryPolicy) Execute(ctx context.Context, op Operation) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry runs fn under p and returns the first successful result.
func Retry[T any](ctx context.Context, p *RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		p.metrics.retryAttempt(ctx, p.cfg.Name, err)
		if err == nil {
			return result, nil
		}

		if attempt >= p.cfg.MaxAttempts || !p.cfg.RetryIf(err) {
			return zero, err
		}

		delay := p.nextDelay(attempt)
		p.log.Debug("retrying after failure", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldDelay, delay.Milliseconds(),
			logger.FieldError, err.Error(),
		))
		if p.cfg.OnRetry != nil {
			p.cfg.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// nextDelay applies jitter to the nominal delay.
func (p *RetryPolicy) nextDelay(attempt int) time.Duration {
	d := p.Delay(attempt)
	if p.cfg.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * p.cfg.Jitter
	return p.clamp(float64(d) + (p.rand()*2-1)*spread)
}

func (p *RetryPolicy) clamp(d float64) time.Duration {
	if d < 0 {
		d = 0
	}
	if p.cfg.MaxDelay > 0 && d > float64(p.cfg.MaxDelay) {
		return p.cfg.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
