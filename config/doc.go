// Package config loads service configuration from YAML files, .env files and
// environment variables.
//
// Values are layered with viper: the YAML file first, then environment
// variables (optionally restricted to a prefix), with .env files loaded into
// the process environment through godotenv before binding. Durations such as
// "250ms" and types implementing encoding.TextUnmarshaler decode directly.
//
// # Usage
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Breaker resilience.CircuitBreakerConfig `mapstructure:"breaker"`
//	}
//
//	var cfg AppConfig
//	err := config.LoadConfig("resilkit-demo", &cfg, config.WithEnvPrefix("RESILKIT"))
//
// With the prefix set, RESILKIT_BREAKER_FAILURE_THRESHOLD=5 overrides
// breaker.failure_threshold.
package config
