package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-checkout.git/internal/config"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
)

// PaymentResult is returned by CreatePayment.
type PaymentResult struct {
	Approved        bool
	ProviderOrderID string
	RedirectURL     string // buyer approval link, empty if the provider gave none
}

// CaptureResult is returned by CapturePayment.
type CaptureResult struct {
	Approved  bool
	CaptureID string
}

// Provider abstracts one external payment gateway behind a uniform
// create/capture pair. Transport failures surface as errors; the caller
// translates them into user-facing messaging.
type Provider interface {
	Slug() string
	CreatePayment(ctx context.Context, order *orders.Order, returnURL, cancelURL string) (PaymentResult, error)
	CapturePayment(ctx context.Context, providerOrderID string) (CaptureResult, error)
}

var ErrUnknownProvider = errors.New("unknown payment provider")

// FromConfig selects the concrete provider at construction time.
func FromConfig(cfg config.Payment) (Provider, error) {
	switch cfg.Provider {
	case SlugPayPal:
		return NewPayPal(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
