package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/eventstore"
	"github.com/kbukum/resilkit/logger"
	"github.com/kbukum/resilkit/validation"
)

type createCommand struct {
	OrderID    string `json:"order_id" validate:"required"`
	CustomerID string `json:"customer_id"`
}

type addItemCommand struct {
	OrderID   string          `json:"order_id" validate:"required"`
	ProductID string          `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"min=1"`
}

type orderCommand struct {
	OrderID string `json:"order_id" validate:"required"`
}

// Service handles order commands and queries.
type Service struct {
	store  eventstore.Store
	codec  eventstore.Codec
	strict bool
	log    *logger.Logger

	// mu serialises replay-then-append in strict mode.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithCodec sets the payload codec. The default is JSON.
func WithCodec(c eventstore.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithStrictTransitions makes commands replay the order first and reject
// invalid transitions with a CONFLICT error.
func WithStrictTransitions() Option {
	return func(s *Service) { s.strict = true }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates an order service over store.
func NewService(store eventstore.Store, opts ...Option) *Service {
	s := &Service{store: store, codec: eventstore.JSONCodec{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("order")
	}
	return s
}

// Codec returns the payload codec.
func (s *Service) Codec() eventstore.Codec { return s.codec }

// CreateOrder records OrderCreated.
func (s *Service) CreateOrder(ctx context.Context, orderID, customerID string) error {
	if err := validation.Validate(createCommand{OrderID: orderID, CustomerID: customerID}); err != nil {
		return err
	}
	return s.append(ctx, orderID, EventOrderCreated, OrderCreated{CustomerID: customerID}, func(st State) error {
		if st.Status != StatusNone {
			return fmt.Errorf("order %s already exists", orderID)
		}
		return nil
	})
}

// AddItem records ItemAdded.
func (s *Service) AddItem(ctx context.Context, orderID, productID string, price decimal.Decimal, quantity int) error {
	cmd := addItemCommand{OrderID: orderID, ProductID: productID, Price: price, Quantity: quantity}
	if err := validation.Validate(cmd); err != nil {
		return err
	}
	event := ItemAdded{ProductID: productID, Price: price, Quantity: quantity}
	return s.append(ctx, orderID, EventItemAdded, event, func(st State) error {
		if st.Status != StatusCreated {
			return fmt.Errorf("cannot add items to order %s in status %q", orderID, st.Status)
		}
		return nil
	})
}

// ConfirmOrder records OrderConfirmed.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) error {
	if err := validation.Validate(orderCommand{OrderID: orderID}); err != nil {
		return err
	}
	return s.append(ctx, orderID, EventOrderConfirmed, OrderConfirmed{}, func(st State) error {
		if st.Status != StatusCreated {
			return fmt.Errorf("cannot confirm order %s in status %q", orderID, st.Status)
		}
		return nil
	})
}

// CancelOrder records OrderCancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	if err := validation.Validate(orderCommand{OrderID: orderID}); err != nil {
		return err
	}
	return s.append(ctx, orderID, EventOrderCancelled, OrderCancelled{Reason: reason}, func(st State) error {
		if st.Status == StatusNone || st.Status == StatusCancelled {
			return fmt.Errorf("cannot cancel order %s in status %q", orderID, st.Status)
		}
		return nil
	})
}

// GetState replays the order. An order with no events is NOT_FOUND.
func (s *Service) GetState(ctx context.Context, orderID string) (State, error) {
	records, err := s.store.Events(ctx, orderID)
	if err != nil {
		return State{}, err
	}
	if len(records) == 0 {
		return State{}, errors.NotFound("order", orderID)
	}
	return Replay(s.codec, orderID, records)
}

func (s *Service) append(ctx context.Context, orderID, eventType string, event any, allowed func(State) error) error {
	if s.strict {
		s.mu.Lock()
		defer s.mu.Unlock()

		records, err := s.store.Events(ctx, orderID)
		if err != nil {
			return err
		}
		st, err := Replay(s.codec, orderID, records)
		if err != nil {
			return err
		}
		if err := allowed(st); err != nil {
			s.log.Warn("order transition rejected", logger.MergeWithError(logger.Fields(
				logger.FieldAggregateID, orderID,
				logger.FieldEventType, eventType,
			), err))
			return errors.Conflict(err.Error()).
				WithDetail("order_id", orderID).
				WithDetail("status", string(st.Status))
		}
	}

	payload, err := s.codec.Marshal(event)
	if err != nil {
		return errors.Internal(fmt.Errorf("encode %s: %w", eventType, err))
	}
	_, err = s.store.Append(ctx, orderID, eventType, payload)
	return err
}
