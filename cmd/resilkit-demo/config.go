package main

import (
	"fmt"
	"time"

	"github.com/kbukum/resilkit/config"
	"github.com/kbukum/resilkit/discovery"
	"github.com/kbukum/resilkit/eventstore"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/observability"
	"github.com/kbukum/resilkit/resilience"
	"github.com/kbukum/resilkit/server"
	"github.com/kbukum/resilkit/validation"
	"github.com/kbukum/resilkit/version"
)

// ServiceEntry is a service registered at startup.
type ServiceEntry struct {
	Name     string `yaml:"name" mapstructure:"name" validate:"required"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required"`
	Version  string `yaml:"version" mapstructure:"version"`
}

// DemoConfig tunes the simulated workload.
type DemoConfig struct {
	// FlakyFailures is how many calls the simulated dependency fails before
	// it starts succeeding.
	FlakyFailures int `yaml:"flaky_failures" mapstructure:"flaky_failures" validate:"gte=0"`
	// Calls is the number of calls driven through the pipeline.
	Calls int `yaml:"calls" mapstructure:"calls" validate:"gte=1"`
	// Interval paces the calls so an open breaker can reach its recovery
	// timeout during the run.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	// Codec selects the event payload codec ("json" or "msgpack").
	Codec string `yaml:"codec" mapstructure:"codec" validate:"omitempty,oneof=json msgpack"`
	// StrictOrders rejects invalid order transitions.
	StrictOrders bool `yaml:"strict_orders" mapstructure:"strict_orders"`
}

// AppConfig is the demo's full configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Breaker       resilience.CircuitBreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	Retry         resilience.RetryConfig          `yaml:"retry" mapstructure:"retry"`
	Pools         []resilience.PoolConfig         `yaml:"pools" mapstructure:"pools"`
	Registry      discovery.RegistryConfig        `yaml:"registry" mapstructure:"registry"`
	Services      []ServiceEntry                  `yaml:"services" mapstructure:"services"`
	Health        health.Config                   `yaml:"health" mapstructure:"health"`
	Observability observability.Config            `yaml:"observability" mapstructure:"observability"`
	HTTP          server.Config                   `yaml:"http" mapstructure:"http"`
	Demo          DemoConfig                      `yaml:"demo" mapstructure:"demo"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "resilkit-demo"
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.ServiceConfig.ApplyDefaults()

	if c.Breaker.Name == "" {
		c.Breaker.Name = "inventory"
	}
	// Trip fast and recover within the scenario.
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 2
	}
	if c.Breaker.RecoveryTimeout == 0 {
		c.Breaker.RecoveryTimeout = 250 * time.Millisecond
	}
	c.Breaker.ApplyDefaults()

	if c.Retry.MaxAttempts == 0 {
		name := c.Retry.Name
		c.Retry = resilience.DefaultRetryConfig()
		c.Retry.Name = name
	}
	if c.Retry.Name == "" {
		c.Retry.Name = c.Breaker.Name
	}

	if len(c.Pools) == 0 {
		c.Pools = []resilience.PoolConfig{{Name: "outbound", MaxConcurrency: 4}}
	}

	c.Registry.ApplyDefaults()
	if len(c.Services) == 0 {
		c.Services = []ServiceEntry{
			{Name: "inventory", Endpoint: "sim://inventory", Version: "1.0.0"},
			{Name: "payments", Endpoint: "down://payments", Version: "2.3.1"},
		}
	}

	c.Health.ApplyDefaults()

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()

	if c.HTTP.Enabled {
		c.HTTP.ApplyDefaults()
	}

	if c.Demo.Calls == 0 {
		c.Demo.Calls = 12
		if c.Demo.FlakyFailures == 0 {
			c.Demo.FlakyFailures = 8
		}
	}
	if c.Demo.Interval == 0 {
		c.Demo.Interval = 100 * time.Millisecond
	}
	if c.Demo.Codec == "" {
		c.Demo.Codec = eventstore.JSONCodec{}.Name()
	}
}

// Validate checks every section and reports all failures at once.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}

	v := validation.New().
		Merge("breaker", c.Breaker.Validate()).
		Merge("retry", c.Retry.Validate()).
		Merge("registry", c.Registry.Validate()).
		Merge("observability", c.Observability.Validate()).
		Merge("demo", validation.Validate(c.Demo))
	if c.HTTP.Enabled {
		v.Merge("http", c.HTTP.Validate())
	}
	for i := range c.Pools {
		v.Merge(fmt.Sprintf("pools[%d]", i), c.Pools[i].Validate())
	}
	for i := range c.Services {
		v.Merge(fmt.Sprintf("services[%d]", i), validation.Validate(c.Services[i]))
	}
	return v.Validate()
}
