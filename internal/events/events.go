// Package events publishes order lifecycle events after their transaction commits.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreated              = "order.created"
	OrderStatusChanged        = "order.status_changed"
	OrderPaymentStatusChanged = "order.payment_status_changed"
	OrderRefunded             = "order.refunded"
	PaymentRecorded           = "payment.recorded"
)

// Event is the message body published for every order state change
type Event struct {
	Type          string          `json:"event_type"`
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number,omitempty"`
	UserID        int64           `json:"user_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher delivers events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
