// Package testutil holds helpers shared by resilkit tests: a manually
// advanced clock for the packages that accept an injectable time source, and
// a lifecycle helper that stops a component when the test ends.
//
//	clock := testutil.NewClock()
//	cb := resilience.NewCircuitBreaker(cfg, resilience.WithClock(clock.Now))
//	clock.Advance(cfg.RecoveryTimeout)
//
//	testutil.Start(t, registry)
package testutil
