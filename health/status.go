package health

import (
	"context"
	"time"
)

// Status is the health of a probe or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Severity orders statuses: Healthy < Degraded < Unhealthy. Unknown values
// rank as Unhealthy.
func (s Status) Severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Result is the outcome of one probe.
type Result struct {
	Status      Status         `json:"status"`
	Description string         `json:"description,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Data        map[string]any `json:"data,omitempty"`
}

// Healthy returns a healthy Result.
func Healthy(description string) Result {
	return Result{Status: StatusHealthy, Description: description}
}

// Degraded returns a degraded Result.
func Degraded(description string) Result {
	return Result{Status: StatusDegraded, Description: description}
}

// Unhealthy returns an unhealthy Result.
func Unhealthy(description string) Result {
	return Result{Status: StatusUnhealthy, Description: description}
}

// WithData returns r with key set in its Data map.
func (r Result) WithData(key string, value any) Result {
	data := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		data[k] = v
	}
	data[key] = value
	r.Data = data
	return r
}

// Report is the aggregated outcome of every registered probe.
type Report struct {
	Status        Status            `json:"status"`
	TotalDuration time.Duration     `json:"total_duration"`
	Entries       map[string]Result `json:"entries"`
	CheckedAt     time.Time         `json:"checked_at"`
}

// Probe reports the health of one dependency.
type Probe interface {
	CheckHealth(ctx context.Context) Result
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) Result

// CheckHealth calls f.
func (f ProbeFunc) CheckHealth(ctx context.Context) Result { return f(ctx) }
