// Package logger provides structured logging for resilkit components using
// zerolog.
//
// Every component (breaker, pool, registry, health aggregator, event store)
// logs through a component-scoped *Logger obtained from Get. Applications call
// Init once with their Config; until then a console logger at info level is
// used.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("breaker")
//	log.Warn("circuit opened", logger.Fields(logger.FieldBreaker, "payments"))
package logger
