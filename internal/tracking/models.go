package tracking

import "time"

// Status is the fulfillment lifecycle, separate from the order's payment
// status.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusPacked     Status = "packed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

// Linear, no skips, no backward edges. Delivered is terminal.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusPacked: true},
	StatusPacked:     {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Tracking is the one-per-paid-order fulfillment row. Milestone timestamps
// record the first arrival into each state and are never overwritten.
type Tracking struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	Status         Status `json:"status"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	DeliveryNotes  string `json:"delivery_notes,omitempty"`

	ProcessingAt *time.Time `json:"processing_at,omitempty"`
	PackedAt     *time.Time `json:"packed_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one append-only audit record per accepted transition.
type Event struct {
	ID         int64     `json:"id"`
	TrackingID int64     `json:"tracking_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Issue is an expected, user-actionable failure: code + message, not an error.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
