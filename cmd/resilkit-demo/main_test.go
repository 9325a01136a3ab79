package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/resilkit/discovery"
	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/resilience"
	"github.com/kbukum/resilkit/server"
)

func testConfig(t *testing.T) *AppConfig {
	t.Helper()
	cfg := &AppConfig{}
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	cfg.Breaker.RecoveryTimeout = 50 * time.Millisecond
	cfg.Demo = DemoConfig{FlakyFailures: 8, Calls: 12, Interval: 20 * time.Millisecond}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return cfg
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()

	if cfg.Name != "resilkit-demo" || cfg.Version == "" {
		t.Errorf("unexpected identity %q %q", cfg.Name, cfg.Version)
	}
	if cfg.Breaker.Name != "inventory" || cfg.Breaker.FailureThreshold != 2 {
		t.Errorf("unexpected breaker defaults %+v", cfg.Breaker)
	}
	if cfg.Retry.Name != "inventory" || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry defaults %+v", cfg.Retry)
	}
	if len(cfg.Pools) != 1 || len(cfg.Services) != 2 {
		t.Errorf("expected one pool and two services, got %d and %d", len(cfg.Pools), len(cfg.Services))
	}
	if cfg.Observability.ServiceName != cfg.Name || cfg.Observability.Enabled() {
		t.Errorf("unexpected telemetry defaults %+v", cfg.Observability)
	}
	if cfg.Demo.Codec != "json" || cfg.Demo.Calls != 12 || cfg.Demo.FlakyFailures != 8 {
		t.Errorf("unexpected demo defaults %+v", cfg.Demo)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad codec", func(c *AppConfig) { c.Demo.Codec = "xml" }, "demo.codec"},
		{"pool size", func(c *AppConfig) { c.Pools[0].MaxConcurrency = 0 }, "pools[0].max_concurrency"},
		{"service endpoint", func(c *AppConfig) { c.Services[1].Endpoint = "" }, "services[1].endpoint"},
		{"retry attempts", func(c *AppConfig) { c.Retry.MaxAttempts = -1 }, "retry.max_attempts"},
		{"http port", func(c *AppConfig) { c.HTTP.Enabled = true; c.HTTP.Port = 70000 }, "http.port"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &AppConfig{}
			cfg.ApplyDefaults()
			tc.mutate(cfg)

			err := cfg.Validate()
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected %q in %q", tc.field, err.Error())
			}
		})
	}
}

func TestServiceProbe(t *testing.T) {
	probe := serviceProbe(nil)
	d := func(endpoint string) discovery.ServiceDescriptor {
		return discovery.ServiceDescriptor{Name: "svc", Endpoint: endpoint}
	}

	if err := probe(context.Background(), d("sim://svc")); err != nil {
		t.Errorf("stub endpoint should be healthy: %v", err)
	}
	if err := probe(context.Background(), d("down://svc")); err == nil {
		t.Error("down endpoint should fail")
	}
}

func TestDriveFlaky_BreakerTripsAndRecovers(t *testing.T) {
	cfg := testConfig(t)
	sys, err := build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := sys.driveFlaky(context.Background(), cfg.Demo, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := 0
	for _, n := range outcomes {
		total += n
	}
	if total != cfg.Demo.Calls {
		t.Errorf("expected %d outcomes, got %v", cfg.Demo.Calls, outcomes)
	}
	// Two calls exhaust their retries and open the breaker.
	if outcomes["operation"] != 2 {
		t.Errorf("expected 2 operation failures, got %v", outcomes)
	}
	if outcomes["none"] == 0 {
		t.Errorf("expected successes after recovery, got %v", outcomes)
	}
	if got := sys.breaker.State(); got != resilience.StateClosed {
		t.Errorf("expected closed breaker, got %s", got)
	}
}

func TestDriveFlaky_Canceled(t *testing.T) {
	cfg := testConfig(t)
	sys, err := build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sys.driveFlaky(ctx, cfg.Demo, logger.NewNop()); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDriveOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Demo.StrictOrders = true
	sys, err := build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := sys.driveOrder(context.Background(), logger.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// create, two items, confirm; the late item is rejected in strict mode.
	if got := sys.store.Len(); got != 4 {
		t.Errorf("expected 4 events, got %d", got)
	}
}

func newTestRouter(t *testing.T, strict bool) (*system, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Demo.StrictOrders = strict
	sys, err := build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	agg := health.NewAggregator(health.WithLogger(logger.NewNop()))
	if err := sys.registerChecks(agg); err != nil {
		t.Fatal(err)
	}
	srv := server.New(server.Config{}, logger.NewNop())
	sys.routes(srv, agg)
	return sys, srv.Engine()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_OrderLifecycle(t *testing.T) {
	_, h := newTestRouter(t, true)

	w := do(t, h, http.MethodPost, "/orders", `{"customer_id":"c-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.Data.ID == "" {
		t.Fatalf("create: bad body %s", w.Body.String())
	}
	base := "/orders/" + created.Data.ID

	steps := []struct {
		path string
		body string
		want int
	}{
		{base + "/items", `{"product_id":"p-1","price":"19.99","quantity":2}`, http.StatusNoContent},
		{base + "/items", `{"product_id":"p-2","price":5.5,"quantity":1}`, http.StatusNoContent},
		{base + "/items", `{"product_id":"p-3","price":"1","quantity":0}`, http.StatusBadRequest},
		{base + "/confirm", ``, http.StatusNoContent},
		{base + "/items", `{"product_id":"p-4","price":"1","quantity":1}`, http.StatusConflict},
		{base + "/confirm", ``, http.StatusConflict},
		{"/orders/not-an-id/confirm", ``, http.StatusBadRequest},
	}
	for i, st := range steps {
		if w := do(t, h, http.MethodPost, st.path, st.body); w.Code != st.want {
			t.Fatalf("step %d %s: expected %d, got %d: %s", i, st.path, st.want, w.Code, w.Body.String())
		}
	}

	w = do(t, h, http.MethodGet, base, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var got struct {
		Data struct {
			Status      string `json:"status"`
			TotalAmount string `json:"total_amount"`
			Items       []any  `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Data.Status != "Confirmed" || got.Data.TotalAmount != "45.48" || len(got.Data.Items) != 2 {
		t.Errorf("unexpected state %+v", got.Data)
	}

	w = do(t, h, http.MethodPost, base+"/cancel", `{"reason":"changed mind"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel: expected 204, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoutes_Lookups(t *testing.T) {
	_, h := newTestRouter(t, false)

	tests := []struct {
		path string
		want int
	}{
		{"/orders/unknown", http.StatusBadRequest},
		{"/orders/6f1c2d4e-0000-4000-8000-000000000099", http.StatusNotFound},
		{"/services", http.StatusOK},
		{"/services/inventory", http.StatusOK},
		{"/services/nope", http.StatusNotFound},
		{"/pools", http.StatusOK},
		{"/breakers/inventory", http.StatusOK},
		{"/breakers/nope", http.StatusNotFound},
		{"/version", http.StatusOK},
		{"/healthz", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if w := do(t, h, http.MethodGet, tc.path, ""); w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}
