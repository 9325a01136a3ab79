// Package errors provides the structured error type shared by every resilkit
// package. Errors carry a machine-readable code, a retryable flag and an
// optional cause so callers can tell a circuit-open rejection or a bulkhead
// wait timeout apart from a failure of the protected operation itself.
package errors
