package bootstrap

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/resilkit/component"
	"github.com/kbukum/resilkit/config"
	"github.com/kbukum/resilkit/health"
	"github.com/kbukum/resilkit/logger"
)

type testConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) component(name string, startErr error) component.Component {
	return component.New(name,
		func(context.Context) error {
			if startErr != nil {
				return startErr
			}
			r.add("start:" + name)
			return nil
		},
		func(context.Context) error {
			r.add("stop:" + name)
			return nil
		},
	)
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "resilkit-test"}}
	app, err := NewApp(cfg, WithLogger(logger.NewNop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp_InvalidConfig(t *testing.T) {
	if _, err := NewApp(&testConfig{}, WithLogger(logger.NewNop())); err == nil {
		t.Error("expected validation error for missing name")
	}
}

func TestNewApp_Defaults(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "resilkit-test" {
		t.Errorf("unexpected name %q", app.Name)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.Health == nil || app.Components == nil {
		t.Error("expected health aggregator and component registry")
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}

	_ = app.RegisterComponent(rec.component("registry", nil))
	_ = app.RegisterComponent(rec.component("http", nil))
	app.OnStart(func(context.Context) error { rec.add("hook:start"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		rec.add("configure")
		return a.Health.RegisterCheck("static", health.ProbeFunc(func(context.Context) health.Result {
			return health.Healthy("")
		}))
	})
	app.OnReady(func(context.Context) error { rec.add("hook:ready"); return nil })
	app.OnStop(func(context.Context) error { rec.add("hook:stop"); return nil })

	taskErr := errors.New("task failed")
	err := app.RunTask(context.Background(), func(context.Context) error {
		rec.add("task")
		return taskErr
	})
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected task error, got %v", err)
	}

	want := []string{
		"start:registry", "start:http",
		"hook:start", "configure", "hook:ready",
		"task",
		"hook:stop", "stop:http", "stop:registry",
	}
	if got := rec.get(); !slices.Equal(got, want) {
		t.Errorf("expected %v\ngot      %v", want, got)
	}
}

func TestRunTask_StartFailure(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(rec.component("a", nil))
	_ = app.RegisterComponent(rec.component("b", errors.New("bind failed")))

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err == nil || ran {
		t.Fatalf("expected startup failure without running task, err=%v ran=%v", err, ran)
	}
	if got := rec.get(); !slices.Equal(got, []string{"start:a", "stop:a"}) {
		t.Errorf("expected rollback of started components, got %v", got)
	}
}

func TestRunTask_ConfigureFailureStopsComponents(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(rec.component("a", nil))
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { return errors.New("boom") })

	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected configure error")
	}
	if got := rec.get(); !slices.Equal(got, []string{"start:a", "stop:a"}) {
		t.Errorf("expected component stopped after failed configure, got %v", got)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	if err := app.ReadyCheck(ctx); err != nil {
		t.Fatalf("empty app should be ready: %v", err)
	}

	_ = app.Health.RegisterCheck("slow", health.ProbeFunc(func(context.Context) health.Result {
		return health.Degraded("slow")
	}))
	if err := app.ReadyCheck(ctx); err != nil {
		t.Errorf("degraded should still be ready: %v", err)
	}

	_ = app.Health.RegisterCheck("db", health.ProbeFunc(func(context.Context) health.Result {
		return health.Unhealthy("down")
	}))
	if err := app.ReadyCheck(ctx); err == nil {
		t.Error("expected unhealthy check to fail readiness")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(rec.component("svc", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.get()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := rec.get(); !slices.Equal(got, []string{"start:svc", "stop:svc"}) {
		t.Errorf("unexpected lifecycle %v", got)
	}
}
