package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one stored event.
type Record struct {
	ID          uuid.UUID `json:"id"`
	AggregateID string    `json:"aggregate_id"`
	Sequence    uint64    `json:"sequence"`
	Type        string    `json:"type"`
	Payload     []byte    `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store appends and reads per-aggregate event streams.
type Store interface {
	// Append stores one event and returns the stored record.
	Append(ctx context.Context, aggregateID, eventType string, payload []byte) (Record, error)
	// Events returns the aggregate's records in append order. An unknown
	// aggregate yields an empty slice.
	Events(ctx context.Context, aggregateID string) ([]Record, error)
}

func (r Record) clone() Record {
	if r.Payload != nil {
		r.Payload = append([]byte(nil), r.Payload...)
	}
	return r
}
