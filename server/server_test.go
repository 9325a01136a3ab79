package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/resilience"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{RateLimit: 5}
	cfg.ApplyDefaults()

	if cfg.Port != 8080 || cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.RateBurst != 6 {
		t.Errorf("expected burst 6, got %d", cfg.RateBurst)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := Config{Port: 70000}
	if err := bad.Validate(); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for port 70000, got %v", err)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 0, MaxInFlight: 4, RateLimit: 100}
	cfg.ApplyDefaults()
	cfg.Port = 0

	s := New(cfg, logger.NewNop())
	if err := s.ApplyMiddleware(resilience.WithLogger(logger.NewNop())); err != nil {
		t.Fatalf("ApplyMiddleware: %v", err)
	}
	s.Engine().GET("/ping", func(c *gin.Context) { RespondOK(c, "pong") })
	s.Engine().GET("/missing", func(c *gin.Context) { RespondWithError(c, errors.NotFound("order", "o-1")) })

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/ping", http.StatusOK, `{"data":"pong"}`},
		{"/missing", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		resp, err := http.Get("http://" + s.Addr() + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.status, resp.StatusCode)
		}
		if tc.body != "" && string(body) != tc.body {
			t.Errorf("%s: expected body %s, got %s", tc.path, tc.body, body)
		}
		if resp.Header.Get("X-Request-Id") == "" {
			t.Errorf("%s: expected request id header", tc.path)
		}
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	s := New(Config{Host: "256.0.0.1", Port: 1}, logger.NewNop())
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected bind error for invalid host")
	}
}
