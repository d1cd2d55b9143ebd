package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderPaid         = "ORDER_PAID"
	EventTypeOrderFailed       = "ORDER_FAILED"
	EventTypeOrderRefunded     = "ORDER_REFUNDED"
	EventTypeEnrollmentCreated = "ENROLLMENT_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	CourseID  int64           `json:"course_id"`
	SessionID int64           `json:"session_id,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// OrderCreatedEvent published when a cart is snapshotted into an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Items    []OrderItemData `json:"items"`
}

// OrderPaidEvent published when the webhook confirms payment; the
// enrollment worker consumes it
type OrderPaidEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	UserID      int64  `json:"user_id"`
	PaymentID   int64  `json:"payment_id"`
	ProviderRef string `json:"provider_ref"`
}

// OrderFailedEvent published when payment is declined
type OrderFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}

// OrderRefundedEvent published on refund; triggers enrollment
// cancellation and link revocation
type OrderRefundedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// EnrollmentCreatedEvent published per enrollment once an order is paid;
// the notification worker consumes it
type EnrollmentCreatedEvent struct {
	BaseEvent
	EnrollmentID int64 `json:"enrollment_id"`
	OrderID      int64 `json:"order_id"`
	UserID       int64 `json:"user_id"`
	CourseID     int64 `json:"course_id"`
	SessionID    int64 `json:"session_id,omitempty"`
}
