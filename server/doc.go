// Package server provides the HTTP surface used by the resilkit demo: a Gin
// engine behind an h2c handler, run as a component.Component.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request ID generation, propagated as the log correlation ID
//   - RequestLogger: per-request logging by status class
//   - RateLimit: token bucket admission on resilience.RateLimiter
//   - Bulkhead: in-flight request cap on resilience.Pool
package server
