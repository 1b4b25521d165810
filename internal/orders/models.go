package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Order is the payment-lifecycle record. The subtotal is frozen at
// reservation time and never recomputed from the items.
type Order struct {
	ID                int64           `json:"id"`
	UserID            string          `json:"user_id,omitempty"` // empty for guest orders
	Email             string          `json:"email"`
	Status            Status          `json:"status"`
	Currency          string          `json:"currency"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	PaymentProvider   string          `json:"payment_provider,omitempty"`
	ProviderOrderID   string          `json:"provider_order_id,omitempty"`
	ProviderCaptureID string          `json:"provider_capture_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem is an immutable line snapshot.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// StockIssue reports one cart line that could not be reserved.
type StockIssue struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}
