package discovery

import (
	"time"

	"github.com/kbukum/resilkit/validation"
)

// RegistryConfig configures health polling.
type RegistryConfig struct {
	// ProbeTimeout bounds a single probe call.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	// PollInterval is the period of the background loop started by Start.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// Concurrency caps the probes running at once during a poll.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultRegistryConfig returns a 2s probe timeout, a 10s poll interval and
// up to 8 concurrent probes.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ProbeTimeout: 2 * time.Second,
		PollInterval: 10 * time.Second,
		Concurrency:  8,
	}
}

// ApplyDefaults fills zero values.
func (c *RegistryConfig) ApplyDefaults() {
	def := DefaultRegistryConfig()
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Concurrency == 0 {
		c.Concurrency = def.Concurrency
	}
}

// Validate checks the configuration.
func (c *RegistryConfig) Validate() error {
	return validation.New().
		Positive("probe_timeout", c.ProbeTimeout).
		Positive("poll_interval", c.PollInterval).
		Min("concurrency", c.Concurrency, 1).
		Validate()
}
