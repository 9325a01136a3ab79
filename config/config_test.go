package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

type level int

func (l *level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return fmt.Errorf("unknown level %q", b)
	}
	return nil
}

type breakerSection struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	Level            level         `mapstructure:"level"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Breaker       breakerSection `mapstructure:"breaker"`
	Tags          []string       `mapstructure:"tags"`

	defaulted bool
}

func (c *testConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.defaulted = true
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
}

func (c *testConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be >= 1")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug log level in development, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name to follow Name, got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info log level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() ServiceConfig {
		c := ServiceConfig{Name: "svc", Environment: "staging"}
		c.Logging.ApplyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "config.name is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "config.environment must be one of"},
		{"invalid logging", func(c *ServiceConfig) { c.Logging.Level = "loud" }, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: demo
environment: staging
breaker:
  failure_threshold: 3
  recovery_timeout: 250ms
  level: high
tags: a,b
`)

	var cfg testConfig
	if err := LoadConfig("demo", &cfg, WithConfigFile(path), WithEnvPrefix("RKTEST")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "demo" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Breaker.FailureThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.RecoveryTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Breaker.RecoveryTimeout)
	}
	if cfg.Breaker.Level != 2 {
		t.Errorf("expected text-unmarshalled level 2, got %d", cfg.Breaker.Level)
	}
	if !slices.Equal(cfg.Tags, []string{"a", "b"}) {
		t.Errorf("expected tags [a b], got %v", cfg.Tags)
	}
	if !cfg.defaulted {
		t.Error("expected ApplyDefaults to run")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: demo
breaker:
  failure_threshold: 3
`)
	t.Setenv("RKTEST_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("RKTEST_BREAKER_RECOVERY_TIMEOUT", "2s")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "99")

	var cfg testConfig
	if err := LoadConfig("demo", &cfg, WithConfigFile(path), WithEnvPrefix("RKTEST_")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Breaker.FailureThreshold != 7 {
		t.Errorf("expected prefixed env override 7, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.RecoveryTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Breaker.RecoveryTimeout)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "RKENV_NAME=from-env-file\nRKENV_BREAKER_FAILURE_THRESHOLD=4\n")
	t.Cleanup(func() {
		os.Unsetenv("RKENV_NAME")
		os.Unsetenv("RKENV_BREAKER_FAILURE_THRESHOLD")
	})

	var cfg testConfig
	err := LoadConfig("demo", &cfg,
		WithConfigFile(filepath.Join(dir, "missing.yml")),
		WithEnvFile(envPath),
		WithEnvPrefix("RKENV"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "from-env-file" {
		t.Errorf("expected name from .env, got %q", cfg.Name)
	}
	if cfg.Breaker.FailureThreshold != 4 {
		t.Errorf("expected threshold 4 from .env, got %d", cfg.Breaker.FailureThreshold)
	}
}

func TestLoadConfigValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "environment: production\n")

	var cfg testConfig
	err := LoadConfig("demo", &cfg, WithConfigFile(path), WithEnvPrefix("RKTEST"))
	if err == nil || !strings.Contains(err.Error(), "config.name is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadConfigBadTextValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: demo\nbreaker:\n  level: extreme\n")

	var cfg testConfig
	if err := LoadConfig("demo", &cfg, WithConfigFile(path), WithEnvPrefix("RKTEST")); err == nil {
		t.Fatal("expected decode error for unknown level")
	}
}

func TestResolveFiles(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/my-svc/config.yml": true,
		"./config.yml":            true,
		"./.env":                  true,
	}}

	files := ResolveFiles(fs, "my-svc", LoaderConfig{})
	if files.ConfigFile != "./cmd/my-svc/config.yml" {
		t.Errorf("expected cmd config first, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	files = ResolveFiles(fs, "my-svc", LoaderConfig{ConfigFile: "/etc/absent.yml"})
	if files.ConfigFile != "" {
		t.Errorf("explicit missing file should resolve to empty, got %q", files.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("BREAKER_FAILURE_THRESHOLD")
	want := []string{
		"breaker_failure_threshold",
		"breaker.failure_threshold",
		"breaker.failure.threshold",
	}
	if !slices.Equal(got, want) {
		t.Errorf("envKeyVariants = %v, want %v", got, want)
	}

	if got := envKeyVariants("NAME"); !slices.Equal(got, []string{"name"}) {
		t.Errorf("single part key: got %v", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/config.yml")(&lc)
	WithEnvFile("/path/.env")(&lc)
	WithEnvPrefix("app_")(&lc)

	if lc.FileSystem != fs {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/config.yml" || lc.EnvFile != "/path/.env" {
		t.Errorf("unexpected paths %+v", lc)
	}
	if lc.EnvPrefix != "APP" {
		t.Errorf("expected normalised prefix APP, got %q", lc.EnvPrefix)
	}
}
