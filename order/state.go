package order

import (
	"github.com/shopspring/decimal"

	"github.com/kbukum/resilkit/errors"
	"github.com/kbukum/resilkit/eventstore"
)

// Status is the lifecycle status of an order.
type Status string

const (
	StatusNone      Status = ""
	StatusCreated   Status = "Created"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// LineItem is one product line of an order.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// State is the projection of an order's events.
type State struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id,omitempty"`
	Status       Status          `json:"status"`
	Items        []LineItem      `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	// Version is the number of events applied.
	Version int `json:"version"`
}

// Replay folds records left to right into a State. It depends on nothing but
// its arguments, so replaying the same records always yields the same state.
func Replay(codec eventstore.Codec, id string, records []eventstore.Record) (State, error) {
	s := State{ID: id, Items: []LineItem{}, TotalAmount: decimal.Zero}
	for _, rec := range records {
		next, err := apply(codec, s, rec)
		if err != nil {
			return State{}, err
		}
		s = next
	}
	return s, nil
}

func apply(codec eventstore.Codec, s State, rec eventstore.Record) (State, error) {
	corrupt := func(err error) (State, error) {
		return State{}, errors.CorruptEvent(rec.AggregateID, rec.Type, err)
	}

	switch rec.Type {
	case EventOrderCreated:
		var e OrderCreated
		if err := codec.Unmarshal(rec.Payload, &e); err != nil {
			return corrupt(err)
		}
		s.Status = StatusCreated
		s.CustomerID = e.CustomerID

	case EventItemAdded:
		var e ItemAdded
		if err := codec.Unmarshal(rec.Payload, &e); err != nil {
			return corrupt(err)
		}
		item := LineItem{ProductID: e.ProductID, Price: e.Price, Quantity: e.Quantity}
		items := make([]LineItem, len(s.Items), len(s.Items)+1)
		copy(items, s.Items)
		s.Items = append(items, item)
		s.TotalAmount = s.TotalAmount.Add(item.Subtotal())

	case EventOrderConfirmed:
		s.Status = StatusConfirmed

	case EventOrderCancelled:
		var e OrderCancelled
		if err := codec.Unmarshal(rec.Payload, &e); err != nil {
			return corrupt(err)
		}
		s.Status = StatusCancelled
		s.CancelReason = e.Reason

	default:
		return corrupt(nil)
	}

	s.Version++
	return s, nil
}
