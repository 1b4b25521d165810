// Package checkout orchestrates the reservation → payment handshake →
// capture sequence. The provider round trips deliberately happen outside any
// database transaction: stock is reserved optimistically and is not released
// automatically when payment never completes.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout.git/internal/cart"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/payment"
	"github.com/ariefcatur/go-shop-checkout.git/internal/tracking"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrEmailRequired = errors.New("email required for guest checkout")
	// ErrProvider marks an external gateway failure. The order, if already
	// created, stays pending.
	ErrProvider   = errors.New("payment provider error")
	ErrNoApproval = errors.New("payment provider did not return an approval link")
)

type OrderStore interface {
	ReserveStock(ctx context.Context, crt cart.Cart, userID, email, currency string) (*orders.Order, []orders.StockIssue, error)
	SetProviderOrder(ctx context.Context, orderID int64, provider, providerOrderID string) error
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID int64, captureID string) (*orders.Order, error)
}

type TrackingInitializer interface {
	GetOrCreate(ctx context.Context, order *orders.Order) (*tracking.Tracking, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Orders   OrderStore
	Provider payment.Provider
	Tracking TrackingInitializer

	CreatedEvents Publisher // order.created
	PaidEvents    Publisher // order.paid

	Currency    string
	ServiceName string
}

type BeginResult struct {
	Order       *orders.Order
	RedirectURL string
}

// Begin runs the reservation engine and, on success, the provider create
// handshake. Validation issues come back as data; the caller sends the buyer
// back to the cart. The provider order id is persisted immediately after a
// successful create so a retry never loses the handshake.
func (s *Service) Begin(ctx context.Context, crt cart.Cart, userID, email, returnURL, cancelURL string) (*BeginResult, []orders.StockIssue, error) {
	if crt.Len() == 0 {
		return nil, nil, ErrEmptyCart
	}
	if userID == "" && email == "" {
		return nil, nil, ErrEmailRequired
	}

	order, issues, err := s.Orders.ReserveStock(ctx, crt, userID, email, s.Currency)
	if err != nil {
		return nil, nil, err
	}
	if len(issues) > 0 {
		return nil, issues, nil
	}

	s.publishCreated(order)

	res, err := s.Provider.CreatePayment(ctx, order, returnURL, cancelURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create: %s", ErrProvider, err)
	}

	if err := s.Orders.SetProviderOrder(ctx, order.ID, s.Provider.Slug(), res.ProviderOrderID); err != nil {
		return nil, nil, err
	}
	order.PaymentProvider = s.Provider.Slug()
	order.ProviderOrderID = res.ProviderOrderID

	if res.RedirectURL == "" {
		return nil, nil, ErrNoApproval
	}
	return &BeginResult{Order: order, RedirectURL: res.RedirectURL}, nil, nil
}

// CompletePayment handles the provider return callback. Looking up an
// unknown token yields orders.ErrNotFound with no mutation. An already-paid
// order skips capture entirely, so the callback is safe to replay.
func (s *Service) CompletePayment(ctx context.Context, providerOrderID string) (*orders.Order, error) {
	if providerOrderID == "" {
		return nil, orders.ErrNotFound
	}

	order, err := s.Orders.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}

	if order.Status != orders.StatusPaid {
		capture, err := s.Provider.CapturePayment(ctx, providerOrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: capture: %s", ErrProvider, err)
		}

		order, err = s.Orders.MarkPaid(ctx, order.ID, capture.CaptureID)
		if err != nil {
			return nil, err
		}
		s.publishPaid(order)
	}

	if _, err := s.Tracking.GetOrCreate(ctx, order); err != nil {
		return nil, fmt.Errorf("init tracking: %w", err)
	}
	return order, nil
}

func (s *Service) publishCreated(order *orders.Order) {
	if s.CreatedEvents == nil {
		return
	}
	items := make([]orders.ItemSnapshot, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orders.ItemSnapshot{
			ProductID: it.ProductID,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	s.publish(s.CreatedEvents, orders.EventOrderCreated, order.ID, orders.OrderCreatedPayload{
		OrderID:  order.ID,
		Email:    order.Email,
		Items:    items,
		Subtotal: order.Subtotal.StringFixed(2),
		Currency: order.Currency,
	})
}

func (s *Service) publishPaid(order *orders.Order) {
	if s.PaidEvents == nil {
		return
	}
	s.publish(s.PaidEvents, orders.EventOrderPaid, order.ID, orders.OrderPaidPayload{
		OrderID:   order.ID,
		Provider:  order.PaymentProvider,
		CaptureID: order.ProviderCaptureID,
		Subtotal:  order.Subtotal.StringFixed(2),
		Currency:  order.Currency,
	})
}

func (s *Service) publish(p Publisher, eventType string, orderID int64, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
