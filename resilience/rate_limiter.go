package resilience

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"

	goerrors "github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/validation"
)

// ErrRateLimited is wrapped when a non-blocking limiter has no token.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Name identifies the limiter.
	Name string `yaml:"name" mapstructure:"name"`
	// Rate is the number of tokens added per second.
	Rate float64 `yaml:"rate" mapstructure:"rate"`
	// Burst is the bucket size.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// Wait makes Execute block for a token instead of rejecting.
	Wait bool `yaml:"wait" mapstructure:"wait"`
	// OnLimit is called whenever a call is rejected.
	OnLimit func(name string) `yaml:"-" mapstructure:"-"`
}

// DefaultRateLimiterConfig returns 10 tokens per second with a burst of 20.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:  name,
		Rate:  10.0,
		Burst: 20,
	}
}

// Validate checks the configuration.
func (c *RateLimiterConfig) Validate() error {
	return validation.New().
		Required("name", c.Name).
		Custom(c.Rate > 0, "rate", "must be positive").
		Min("burst", c.Burst, 1).
		Validate()
}

// RateLimiter is a token bucket in front of an operation.
type RateLimiter struct {
	config   RateLimiterConfig
	limiter  *rate.Limiter
	log      *logger.Logger
	rejected atomic.Uint64
}

// NewRateLimiter creates a limiter with a full bucket. A non-positive Rate
// or Burst falls back to the defaults.
func NewRateLimiter(config RateLimiterConfig, opts ...Option) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = max(1, int(config.Rate))
	}
	o := buildOptions("ratelimit", opts)
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		log:     o.log.WithFields(logger.Fields("limiter", config.Name)),
	}
}

// Name returns the limiter name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Execute runs op once a token is taken. In non-blocking mode a missing
// token returns a RATE_LIMITED AppError wrapping ErrRateLimited.
func (rl *RateLimiter) Execute(ctx context.Context, op Operation) error {
	if rl.config.Wait {
		if err := rl.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			// The wait would outlast the context deadline.
			return rl.reject()
		}
		return op(ctx)
	}

	if !rl.limiter.Allow() {
		return rl.reject()
	}
	return op(ctx)
}

func (rl *RateLimiter) reject() error {
	rl.rejected.Add(1)
	rl.log.Debug("call rate limited")
	if rl.config.OnLimit != nil {
		rl.config.OnLimit(rl.config.Name)
	}
	return goerrors.RateLimited(rl.config.Name).WithCause(ErrRateLimited)
}

// Tokens returns the number of tokens currently in the bucket.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Rejected returns how many calls were rejected.
func (rl *RateLimiter) Rejected() uint64 {
	return rl.rejected.Load()
}

// Rate returns the configured rate.
func (rl *RateLimiter) Rate() float64 {
	return rl.config.Rate
}

// Burst returns the configured burst.
func (rl *RateLimiter) Burst() int {
	return rl.config.Burst
}
