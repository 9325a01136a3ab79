package bootstrap

import (
	"time"

	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	healthOpts      []health.Option
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialised from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithHealth passes options to the aggregator used for the ready check.
// The aggregator is built after the logger so its log lines follow Logging.
func WithHealth(opts ...health.Option) Option {
	return func(o *appOptions) {
		o.healthOpts = append(o.healthOpts, opts...)
	}
}
