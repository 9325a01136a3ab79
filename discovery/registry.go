package discovery

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
)

// Registry holds service descriptors keyed by name.
type Registry struct {
	cfg   RegistryConfig
	probe Probe
	log   *logger.Logger
	now   func() time.Time

	mu       sync.RWMutex
	services map[string]*ServiceDescriptor
	watchers map[string][]chan ServiceDescriptor

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry. Zero config values take defaults.
// A nil probe treats every service as healthy.
func NewRegistry(cfg RegistryConfig, probe Probe, opts ...Option) *Registry {
	cfg.ApplyDefaults()
	if probe == nil {
		probe = func(context.Context, ServiceDescriptor) error { return nil }
	}
	r := &Registry{
		cfg:      cfg,
		probe:    probe,
		now:      time.Now,
		services: make(map[string]*ServiceDescriptor),
		watchers: make(map[string][]chan ServiceDescriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get("registry")
	}
	return r
}

// Register stores a descriptor, replacing any previous one with the same
// name. New descriptors start healthy.
func (r *Registry) Register(name, endpoint, version string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidInput("name", "service name must not be empty")
	}

	now := r.now()
	d := &ServiceDescriptor{
		Name:         name,
		Endpoint:     endpoint,
		Version:      version,
		Healthy:      true,
		RegisteredAt: now,
	}

	r.mu.Lock()
	_, replaced := r.services[name]
	r.services[name] = d
	snapshot := *d
	r.mu.Unlock()

	fields := logger.Fields(logger.FieldService, name, logger.FieldEndpoint, endpoint, logger.FieldVersion, version)
	if replaced {
		r.log.Info("service re-registered", fields)
	} else {
		r.log.Info("service registered", fields)
	}
	r.publish(snapshot)
	return nil
}

// Discover returns a copy of the named descriptor.
func (r *Registry) Discover(name string) (ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.services[name]
	if !ok {
		return ServiceDescriptor{}, false
	}
	return *d, true
}

// ListAll returns copies of every descriptor sorted by name.
func (r *Registry) ListAll() []ServiceDescriptor {
	r.mu.RLock()
	out := make([]ServiceDescriptor, 0, len(r.services))
	for _, d := range r.services {
		out = append(out, *d)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ServiceDescriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Watch streams descriptor updates for name (registrations and health
// changes) until ctx ends. Slow readers miss updates rather than block the
// registry.
func (r *Registry) Watch(ctx context.Context, name string) <-chan ServiceDescriptor {
	ch := make(chan ServiceDescriptor, 8)

	r.mu.Lock()
	r.watchers[name] = append(r.watchers[name], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.watchers[name] = slices.DeleteFunc(r.watchers[name], func(c chan ServiceDescriptor) bool { return c == ch })
		if len(r.watchers[name]) == 0 {
			delete(r.watchers, name)
		}
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}

func (r *Registry) publish(d ServiceDescriptor) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.watchers[d.Name] {
		select {
		case ch <- d:
		default:
		}
	}
}
