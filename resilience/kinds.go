package resilience

import (
	"context"
	"errors"
)

// Operation is the unit of work every primitive wraps. It must honour ctx.
type Operation func(ctx context.Context) error

// FailureKind classifies the error returned by a resilience primitive.
type FailureKind int

const (
	// KindNone means the call succeeded.
	KindNone FailureKind = iota
	// KindOperation means the wrapped operation ran and failed.
	KindOperation
	// KindCircuitOpen means a breaker rejected the call without running it.
	KindCircuitOpen
	// KindPoolWait means no pool slot became free within the wait limit.
	KindPoolWait
	// KindRateLimited means a rate limiter rejected the call.
	KindRateLimited
	// KindCanceled means the caller's context ended first.
	KindCanceled
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOperation:
		return "operation"
	case KindCircuitOpen:
		return "circuit_open"
	case KindPoolWait:
		return "pool_wait"
	case KindRateLimited:
		return "rate_limited"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Rejected reports whether the operation was never invoked.
func (k FailureKind) Rejected() bool {
	return k == KindCircuitOpen || k == KindPoolWait || k == KindRateLimited
}

// KindOf classifies err.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrPoolWaitTimeout):
		return KindPoolWait
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOperation
	}
}
