package observability

import (
	"time"

	"github.com/kbukum/resilkit/validation"
)

// Config configures the OTLP HTTP exporters. Endpoint is a host:port such as
// "localhost:4318"; telemetry stays disabled while it is empty.
type Config struct {
	ServiceName    string        `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string        `yaml:"service_version" mapstructure:"service_version"`
	Environment    string        `yaml:"environment" mapstructure:"environment"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultConfig returns development defaults pointing at a local collector.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
		Interval:       15 * time.Second,
	}
}

// Enabled reports whether an exporter endpoint is configured.
func (c *Config) Enabled() bool {
	return c.Endpoint != ""
}

// ApplyDefaults fills zero values other than Endpoint.
func (c *Config) ApplyDefaults() {
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate checks the exporter settings. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.New().
		Required("service_name", c.ServiceName).
		FloatRange("sample_rate", c.SampleRate, 0, 1).
		Positive("interval", c.Interval).
		Validate()
}
