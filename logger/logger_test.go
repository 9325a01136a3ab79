package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatJSON}, "orders", &buf)

	l.Info("pool created", Fields(FieldPool, "db", "max", 4))

	m := decodeLine(t, &buf)
	if m["message"] != "pool created" {
		t.Errorf("unexpected message %v", m["message"])
	}
	if m[FieldService] != "orders" {
		t.Errorf("expected service=orders, got %v", m[FieldService])
	}
	if m[FieldPool] != "db" {
		t.Errorf("expected pool=db, got %v", m[FieldPool])
	}
	if m["level"] != "info" {
		t.Errorf("expected level=info, got %v", m["level"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", Format: FormatJSON}, "svc", &buf)

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered, got %q", buf.String())
	}

	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "invalid-level", Format: FormatJSON}, "test", &buf)
	l.Debug("dropped")
	l.Info("kept")
	if strings.Contains(buf.String(), "dropped") {
		t.Error("invalid level should fall back to info")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Error("expected info line")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "env-svc" {
		t.Errorf("expected service env-svc, got %q", l.service)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error("nothing happens")
	l.WithComponent("x").Warn("still nothing")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Format: FormatJSON}, "test", &buf)
	cl := l.WithComponent("breaker")
	if cl.service != "test" {
		t.Errorf("service should be preserved, got %q", cl.service)
	}

	cl.Info("hello")
	m := decodeLine(t, &buf)
	if m[FieldComponent] != "breaker" {
		t.Errorf("expected component=breaker, got %v", m[FieldComponent])
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Format: FormatJSON}, "test", &buf)

	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected the same logger when ctx carries no correlation id")
	}

	ctx := ContextWithCorrelationID(context.Background(), "abc123")
	l.WithContext(ctx).Info("traced")
	m := decodeLine(t, &buf)
	if m[FieldCorrelationID] != "abc123" {
		t.Errorf("expected correlation_id=abc123, got %v", m[FieldCorrelationID])
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Format: FormatJSON}, "test", &buf)

	l.WithFields(map[string]interface{}{FieldAttempt: 2}).WithError(errors.New("boom")).Error("failed")
	m := decodeLine(t, &buf)
	if m[FieldAttempt] != float64(2) {
		t.Errorf("expected attempt=2, got %v", m[FieldAttempt])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Format: FormatConsole, NoColor: true}, "orders", &buf)
	l.Warn("circuit opened", Fields(FieldBreaker, "payments"))

	out := buf.String()
	if !strings.Contains(out, "[ORD][WAR]") {
		t.Errorf("expected service and level tag, got %q", out)
	}
	if !strings.Contains(out, "breaker:") {
		t.Errorf("expected field name formatting, got %q", out)
	}
}

func TestInit(t *testing.T) {
	defer SetGlobalLogger(nil)

	Init(&Config{ServiceName: "init-svc", Format: FormatJSON})
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "init-svc" {
		t.Errorf("expected service init-svc, got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	SetGlobalLogger(nil)
	l := GetGlobalLogger()
	if l == nil {
		t.Fatal("expected default global logger to be created")
	}
	if l.service != "resilkit" {
		t.Errorf("expected default service resilkit, got %q", l.service)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&Config{Level: "debug", Format: FormatJSON}, "pkg", &buf))
	defer SetGlobalLogger(nil)

	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d", len(lines))
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatConsole {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"trace console", Config{Level: "trace", Format: "console", Output: "stderr"}, false},
		{"bad level", Config{Level: "verbose", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", "dangling")
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields %v", m)
	}

	m = Fields(42, "non-string key")
	if len(m) != 0 {
		t.Errorf("non-string keys should be skipped, got %v", m)
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("append", errors.New("disk"))
	if ef[FieldOperation] != "append" || ef[FieldError] != "disk" {
		t.Errorf("unexpected error fields %v", ef)
	}

	df := DurationFields("probe", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", df[FieldDuration])
	}

	merged := MergeWithError(nil, errors.New("x"))
	if merged[FieldError] != "x" {
		t.Errorf("expected error=x, got %v", merged)
	}
}

func TestNamedRegistry(t *testing.T) {
	defer Reset()

	custom := NewNop()
	Register("pool", custom)
	if Get("pool") != custom {
		t.Error("expected registered logger")
	}

	fallback := Get("unregistered")
	if fallback == nil {
		t.Fatal("expected fallback logger")
	}

	RegisterDefaults("breaker", "registry")
	if Get("breaker") == nil || Get("registry") == nil {
		t.Error("expected default component loggers")
	}

	Reset()
	if Get("pool") == custom {
		t.Error("expected Reset to drop registered loggers")
	}
}

func TestOutputWriter(t *testing.T) {
	if outputWriter("stderr") != os.Stderr {
		t.Error("expected stderr")
	}
	if outputWriter("anything") != os.Stdout {
		t.Error("expected stdout fallback")
	}
}
