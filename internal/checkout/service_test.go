package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-shop-checkout.git/internal/cart"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/payment"
	"github.com/ariefcatur/go-shop-checkout.git/internal/tracking"
)

type fakeStore struct {
	reserved *orders.Order
	issues   []orders.StockIssue

	setProviderCalls int
	providerOrderID  string

	byProviderID map[string]*orders.Order

	markPaidCalls int
}

func (f *fakeStore) ReserveStock(_ context.Context, _ cart.Cart, _, _, _ string) (*orders.Order, []orders.StockIssue, error) {
	if len(f.issues) > 0 {
		return nil, f.issues, nil
	}
	return f.reserved, nil, nil
}

func (f *fakeStore) SetProviderOrder(_ context.Context, _ int64, _, providerOrderID string) error {
	f.setProviderCalls++
	f.providerOrderID = providerOrderID
	return nil
}

func (f *fakeStore) GetByProviderOrderID(_ context.Context, providerOrderID string) (*orders.Order, error) {
	o, ok := f.byProviderID[providerOrderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID int64, captureID string) (*orders.Order, error) {
	f.markPaidCalls++
	for _, o := range f.byProviderID {
		if o.ID == orderID {
			o.Status = orders.StatusPaid
			o.ProviderCaptureID = captureID
			cp := *o
			return &cp, nil
		}
	}
	return nil, orders.ErrNotFound
}

type fakeProvider struct {
	createRes  payment.PaymentResult
	createErr  error
	captureRes payment.CaptureResult
	captureErr error

	createCalls  int
	captureCalls int
}

func (f *fakeProvider) Slug() string { return "paypal" }

func (f *fakeProvider) CreatePayment(_ context.Context, _ *orders.Order, _, _ string) (payment.PaymentResult, error) {
	f.createCalls++
	return f.createRes, f.createErr
}

func (f *fakeProvider) CapturePayment(_ context.Context, _ string) (payment.CaptureResult, error) {
	f.captureCalls++
	return f.captureRes, f.captureErr
}

type fakeTracking struct{ calls int }

func (f *fakeTracking) GetOrCreate(_ context.Context, order *orders.Order) (*tracking.Tracking, error) {
	f.calls++
	return &tracking.Tracking{OrderID: order.ID, Status: tracking.StatusProcessing}, nil
}

type capturedEvents struct{ values [][]byte }

func (c *capturedEvents) Publish(_, value []byte, _ ...kafkago.Header) {
	c.values = append(c.values, value)
}

func pendingOrder(id int64) *orders.Order {
	return &orders.Order{
		ID:       id,
		Status:   orders.StatusPending,
		Email:    "buyer@example.com",
		Currency: "EUR",
		Subtotal: decimal.RequireFromString("150.00"),
		Items: []orders.OrderItem{
			{ProductID: 1, Qty: 3, UnitPrice: decimal.RequireFromString("50.00")},
		},
	}
}

func filledCart() cart.Cart {
	return cart.Cart{
		SessionID: "sid-1",
		Lines: map[int64]cart.Line{
			1: {Qty: 3, UnitPrice: decimal.RequireFromString("50.00")},
		},
	}
}

func newService(store *fakeStore, provider *fakeProvider) (*Service, *fakeTracking, *capturedEvents, *capturedEvents) {
	trk := &fakeTracking{}
	created := &capturedEvents{}
	paid := &capturedEvents{}
	svc := &Service{
		Orders:        store,
		Provider:      provider,
		Tracking:      trk,
		CreatedEvents: created,
		PaidEvents:    paid,
		Currency:      "EUR",
		ServiceName:   "checkout-api",
	}
	return svc, trk, created, paid
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	svc, _, _, _ := newService(&fakeStore{}, &fakeProvider{})

	_, _, err := svc.Begin(context.Background(), cart.Cart{SessionID: "sid-1"}, "u1", "", "r", "c")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestBeginRequiresGuestEmail(t *testing.T) {
	svc, _, _, _ := newService(&fakeStore{}, &fakeProvider{})

	_, _, err := svc.Begin(context.Background(), filledCart(), "", "", "r", "c")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestBeginStockIssuesSkipProvider(t *testing.T) {
	store := &fakeStore{issues: []orders.StockIssue{
		{ProductID: 1, ProductName: "Mug", Requested: 5, Available: 2},
	}}
	provider := &fakeProvider{}
	svc, _, created, _ := newService(store, provider)

	res, issues, err := svc.Begin(context.Background(), filledCart(), "u1", "", "r", "c")
	require.NoError(t, err)
	assert.Nil(t, res)
	require.Len(t, issues, 1)
	assert.Equal(t, "Mug", issues[0].ProductName)
	assert.Zero(t, provider.createCalls)
	assert.Empty(t, created.values)
}

func TestBeginHappyPath(t *testing.T) {
	store := &fakeStore{reserved: pendingOrder(7)}
	provider := &fakeProvider{createRes: payment.PaymentResult{
		Approved:        true,
		ProviderOrderID: "PP-7",
		RedirectURL:     "https://pp/approve",
	}}
	svc, _, created, paid := newService(store, provider)

	res, issues, err := svc.Begin(context.Background(), filledCart(), "", "buyer@example.com", "r", "c")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, "https://pp/approve", res.RedirectURL)
	assert.Equal(t, "paypal", res.Order.PaymentProvider)
	assert.Equal(t, "PP-7", res.Order.ProviderOrderID)

	assert.Equal(t, 1, store.setProviderCalls)
	assert.Equal(t, "PP-7", store.providerOrderID)
	assert.Len(t, created.values, 1)
	assert.Empty(t, paid.values)
}

func TestBeginProviderFailureLeavesOrderPending(t *testing.T) {
	store := &fakeStore{reserved: pendingOrder(7)}
	provider := &fakeProvider{createErr: errors.New("connection refused")}
	svc, _, created, _ := newService(store, provider)

	_, _, err := svc.Begin(context.Background(), filledCart(), "u1", "", "r", "c")
	assert.ErrorIs(t, err, ErrProvider)

	// The order was created and announced before the gateway failed; the
	// handshake id was never stored.
	assert.Len(t, created.values, 1)
	assert.Zero(t, store.setProviderCalls)
	assert.Equal(t, orders.StatusPending, store.reserved.Status)
}

func TestBeginNoApprovalLink(t *testing.T) {
	store := &fakeStore{reserved: pendingOrder(7)}
	provider := &fakeProvider{createRes: payment.PaymentResult{
		Approved:        true,
		ProviderOrderID: "PP-7",
	}}
	svc, _, _, _ := newService(store, provider)

	_, _, err := svc.Begin(context.Background(), filledCart(), "u1", "", "r", "c")
	assert.ErrorIs(t, err, ErrNoApproval)
	// The provider order id still got persisted for a later retry.
	assert.Equal(t, 1, store.setProviderCalls)
}

func TestCompletePaymentUnknownToken(t *testing.T) {
	store := &fakeStore{byProviderID: map[string]*orders.Order{}}
	provider := &fakeProvider{}
	svc, trk, _, _ := newService(store, provider)

	_, err := svc.CompletePayment(context.Background(), "")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	_, err = svc.CompletePayment(context.Background(), "PP-missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	assert.Zero(t, provider.captureCalls)
	assert.Zero(t, trk.calls)
}

func TestCompletePaymentCapturesAndInitsTracking(t *testing.T) {
	o := pendingOrder(7)
	o.PaymentProvider = "paypal"
	o.ProviderOrderID = "PP-7"
	store := &fakeStore{byProviderID: map[string]*orders.Order{"PP-7": o}}
	provider := &fakeProvider{captureRes: payment.CaptureResult{Approved: true, CaptureID: "CAP-9"}}
	svc, trk, _, paid := newService(store, provider)

	got, err := svc.CompletePayment(context.Background(), "PP-7")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.Equal(t, "CAP-9", got.ProviderCaptureID)

	assert.Equal(t, 1, provider.captureCalls)
	assert.Equal(t, 1, store.markPaidCalls)
	assert.Equal(t, 1, trk.calls)
	assert.Len(t, paid.values, 1)
}

func TestCompletePaymentReplayIsIdempotent(t *testing.T) {
	o := pendingOrder(7)
	o.Status = orders.StatusPaid
	o.ProviderOrderID = "PP-7"
	o.ProviderCaptureID = "CAP-9"
	store := &fakeStore{byProviderID: map[string]*orders.Order{"PP-7": o}}
	provider := &fakeProvider{}
	svc, trk, _, paid := newService(store, provider)

	got, err := svc.CompletePayment(context.Background(), "PP-7")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)

	assert.Zero(t, provider.captureCalls)
	assert.Zero(t, store.markPaidCalls)
	assert.Empty(t, paid.values)
	// Tracking init still runs; it is idempotent on its own.
	assert.Equal(t, 1, trk.calls)
}

func TestCompletePaymentCaptureFailure(t *testing.T) {
	o := pendingOrder(7)
	o.ProviderOrderID = "PP-7"
	store := &fakeStore{byProviderID: map[string]*orders.Order{"PP-7": o}}
	provider := &fakeProvider{captureErr: errors.New("DECLINED")}
	svc, trk, _, paid := newService(store, provider)

	_, err := svc.CompletePayment(context.Background(), "PP-7")
	assert.ErrorIs(t, err, ErrProvider)
	assert.Zero(t, store.markPaidCalls)
	assert.Zero(t, trk.calls)
	assert.Empty(t, paid.values)
}
