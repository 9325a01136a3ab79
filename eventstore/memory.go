package eventstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/observability"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	streams  map[string][]Record
	sequence uint64

	now   func() time.Time
	newID func() uuid.UUID
	log   *logger.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDGenerator overrides uuid.New for record IDs.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *MemoryStore) { s.newID = gen }
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *MemoryStore) { s.log = l }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		streams: make(map[string][]Record),
		now:     time.Now,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("eventstore")
	}
	return s
}

// Append stores one event. The payload is copied.
func (s *MemoryStore) Append(ctx context.Context, aggregateID, eventType string, payload []byte) (rec Record, err error) {
	_, span := observability.StartSpan(ctx, "eventstore.append",
		attribute.String(observability.AttrAggregateID, aggregateID),
		attribute.String(observability.AttrEventType, eventType),
	)
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(aggregateID) == "" {
		return Record{}, errors.MissingField("aggregate_id")
	}
	if strings.TrimSpace(eventType) == "" {
		return Record{}, errors.MissingField("event_type")
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	rec = Record{
		ID:          s.newID(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     append([]byte(nil), payload...),
	}

	s.mu.Lock()
	s.sequence++
	rec.Sequence = s.sequence
	rec.Timestamp = s.now()
	s.streams[aggregateID] = append(s.streams[aggregateID], rec)
	s.mu.Unlock()

	s.log.Debug("event appended", logger.Fields(
		logger.FieldAggregateID, aggregateID,
		logger.FieldEventType, eventType,
		logger.FieldSequence, rec.Sequence,
	))
	return rec.clone(), nil
}

// Events returns copies of the aggregate's records in append order.
func (s *MemoryStore) Events(ctx context.Context, aggregateID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	stream := s.streams[aggregateID]
	out := make([]Record, len(stream))
	for i, r := range stream {
		out[i] = r.clone()
	}
	s.mu.RUnlock()
	return out, nil
}

// Aggregates returns the number of aggregates with at least one event.
func (s *MemoryStore) Aggregates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

// Len returns the total number of stored records.
func (s *MemoryStore) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence
}
