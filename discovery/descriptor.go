package discovery

import (
	"context"
	"time"
)

// ServiceDescriptor describes one registered service.
type ServiceDescriptor struct {
	Name         string    `json:"name"`
	Endpoint     string    `json:"endpoint"`
	Version      string    `json:"version"`
	Healthy      bool      `json:"healthy"`
	LastChecked  time.Time `json:"last_checked"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Probe checks one service. A nil error means healthy. Probes must honour
// ctx; the registry bounds each call with RegistryConfig.ProbeTimeout.
type Probe func(ctx context.Context, d ServiceDescriptor) error

// PollSummary reports the outcome of one PollHealth round.
type PollSummary struct {
	Checked   int           `json:"checked"`
	Healthy   int           `json:"healthy"`
	Unhealthy int           `json:"unhealthy"`
	Duration  time.Duration `json:"duration"`
}
