package observability

import (
	"context"
	"sync"

	"github.com/kbukum/resilkit/component"
	"github.com/kbukum/resilkit/logger"
)

var _ component.Component = (*Component)(nil)

// Component installs the exporters on Start and flushes them on Stop.
type Component struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	shutdown ShutdownFunc
}

// NewComponent wraps Setup as a lifecycle component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Get("telemetry")
	}
	return &Component{cfg: cfg, log: log}
}

// Name implements component.Component.
func (c *Component) Name() string { return "telemetry" }

// Start implements component.Component.
func (c *Component) Start(ctx context.Context) error {
	shutdown, err := Setup(ctx, c.cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.shutdown = shutdown
	c.mu.Unlock()

	if c.cfg.Enabled() {
		c.log.Info("telemetry exporters started", logger.Fields(logger.FieldEndpoint, c.cfg.Endpoint))
	} else {
		c.log.Debug("telemetry disabled")
	}
	return nil
}

// Stop implements component.Component.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	shutdown := c.shutdown
	c.shutdown = nil
	c.mu.Unlock()

	if shutdown == nil {
		return nil
	}
	return shutdown(ctx)
}
