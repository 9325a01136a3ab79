package logger

import (
	"time"
)

// Field keys shared by every resilkit component.
const (
	FieldService       = "service"
	FieldComponent     = "component"
	FieldCorrelationID = "correlation_id"
	FieldOperation     = "operation"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldDuration      = "duration_ms"

	FieldBreaker     = "breaker"
	FieldState       = "state"
	FieldFromState   = "from"
	FieldToState     = "to"
	FieldFailures    = "consecutive_failures"
	FieldPool        = "pool"
	FieldInFlight    = "in_flight"
	FieldEndpoint    = "endpoint"
	FieldVersion     = "version"
	FieldHealthy     = "healthy"
	FieldCheck       = "check"
	FieldAggregateID = "aggregate_id"
	FieldEventType   = "event_type"
	FieldSequence    = "sequence"
	FieldAttempt     = "attempt"
	FieldDelay       = "delay_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
// A trailing key without a value is dropped.
//
//	log.Info("pool created", logger.Fields(logger.FieldPool, "db", "max", 4))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}

// MergeWithError adds an error field to an existing map.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldError] = err.Error()
	return fields
}
