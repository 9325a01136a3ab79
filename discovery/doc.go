// Package discovery is an in-memory service registry with periodic health
// polling.
//
// Services register under a unique name; registering an existing name
// overwrites it. Descriptors are never removed: a failing probe only marks
// them unhealthy, and the next successful probe marks them healthy again.
//
//	reg := discovery.NewRegistry(discovery.DefaultRegistryConfig(), probe)
//	_ = reg.Register("inventory", "http://inventory:8080", "1.4.2")
//	reg.Start(ctx)
//	defer reg.Stop()
//
//	d, ok := reg.Discover("inventory")
package discovery
