// Package health aggregates named health probes into a single report.
//
// Probes run concurrently under a per-probe timeout. A probe that panics or
// overruns its timeout is reported Unhealthy; the aggregator itself never
// fails. The overall status is the most severe entry.
package health
