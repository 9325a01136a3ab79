package order

import "github.com/shopspring/decimal"

// Event type tags stored in eventstore.Record.Type.
const (
	EventOrderCreated   = "OrderCreated"
	EventItemAdded      = "ItemAdded"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderCancelled = "OrderCancelled"
)

// OrderCreated opens an order for a customer.
type OrderCreated struct {
	CustomerID string `json:"customer_id"`
}

// ItemAdded adds a line item.
type ItemAdded struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// OrderConfirmed confirms an order.
type OrderConfirmed struct{}

// OrderCancelled cancels an order.
type OrderCancelled struct {
	Reason string `json:"reason,omitempty"`
}
