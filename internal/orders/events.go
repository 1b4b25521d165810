package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderPaid       = "OrderPaid"
	EventTrackingUpdated = "TrackingUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemSnapshot struct {
	ProductID int64  `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID  int64          `json:"order_id"`
	Email    string         `json:"email"`
	Items    []ItemSnapshot `json:"items"`
	Subtotal string         `json:"subtotal"`
	Currency string         `json:"currency"`
}

type OrderPaidPayload struct {
	OrderID   int64  `json:"order_id"`
	Provider  string `json:"provider"`
	CaptureID string `json:"capture_id"`
	Subtotal  string `json:"subtotal"`
	Currency  string `json:"currency"`
}

type TrackingUpdatedPayload struct {
	OrderID    int64  `json:"order_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}
