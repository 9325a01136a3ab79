package component

import "context"

// Component is a part with a start/stop lifecycle.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start begins background work. It must not block past startup.
	Start(ctx context.Context) error

	// Stop shuts the component down, honouring ctx as the deadline.
	Stop(ctx context.Context) error
}

type funcComponent struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// New adapts a pair of functions into a Component. Either may be nil.
func New(name string, start, stop func(context.Context) error) Component {
	return &funcComponent{name: name, start: start, stop: stop}
}

func (f *funcComponent) Name() string { return f.name }

func (f *funcComponent) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f *funcComponent) Stop(ctx context.Context) error {
	if f.stop == nil {
		return nil
	}
	return f.stop(ctx)
}
