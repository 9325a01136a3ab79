package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/resilkit/component"
)

// StopTimeout bounds the cleanup Stop issued by Start.
const StopTimeout = 5 * time.Second

// Start starts c and registers a cleanup that stops it when the test ends.
// A start failure fails the test immediately.
func Start(t testing.TB, c component.Component) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
		defer cancel()
		if err := c.Stop(ctx); err != nil {
			t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}
