package resilience

import (
	"time"

	"github.com/kbukum/resilkit/logger"
)

// Option configures the logger, metrics or clock of a primitive.
type Option func(*options)

type options struct {
	log     *logger.Logger
	metrics *Metrics
	clock   func() time.Time
}

// WithLogger sets the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the otel instruments. Pass nil to disable recording.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func buildOptions(component string, opts []Option) options {
	o := options{metrics: DefaultMetrics(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get(component)
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}
