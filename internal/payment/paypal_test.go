package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-checkout.git/internal/config"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
)

func configFor(provider string) config.Payment {
	return config.Payment{
		Provider:           provider,
		PayPalEnv:          "sandbox",
		PayPalClientID:     "cid",
		PayPalClientSecret: "csecret",
	}
}

func testPayPal(baseURL string) *PayPal {
	return &PayPal{
		baseURL:      baseURL,
		clientID:     "cid",
		clientSecret: "csecret",
		httpc:        &http.Client{Timeout: 2 * time.Second},
	}
}

func fakeGateway(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "cid", user)
		require.Equal(t, "csecret", pass)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreatePayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				ReferenceID string `json:"reference_id"`
				Amount      struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "7", body.PurchaseUnits[0].ReferenceID)
		assert.Equal(t, "EUR", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "150.00", body.PurchaseUnits[0].Amount.Value)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "PP-ORDER-1",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.test/self"},
				{"rel": "approve", "href": "https://example.test/approve"},
			},
		})
	})
	srv := fakeGateway(t, mux)
	p := testPayPal(srv.URL)

	order := &orders.Order{
		ID:       7,
		Currency: "EUR",
		Subtotal: decimal.RequireFromString("150.00"),
	}
	res, err := p.CreatePayment(context.Background(), order, "https://shop/return", "https://shop/cancel")
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, "PP-ORDER-1", res.ProviderOrderID)
	assert.Equal(t, "https://example.test/approve", res.RedirectURL)
}

func TestCapturePayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]string{{"id": "CAP-9"}},
				},
			}},
		})
	})
	srv := fakeGateway(t, mux)
	p := testPayPal(srv.URL)

	res, err := p.CapturePayment(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, "CAP-9", res.CaptureID)
}

func TestCaptureWithoutCaptureIDFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"purchase_units": []any{}})
	})
	srv := fakeGateway(t, mux)
	p := testPayPal(srv.URL)

	_, err := p.CapturePayment(context.Background(), "PP-ORDER-1")
	assert.Error(t, err)
}

func TestGatewayErrorsSurface(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	})
	srv := fakeGateway(t, mux)
	p := testPayPal(srv.URL)

	order := &orders.Order{ID: 1, Currency: "EUR", Subtotal: decimal.NewFromInt(5)}
	_, err := p.CreatePayment(context.Background(), order, "r", "c")
	assert.ErrorContains(t, err, "status 418")
}

func TestFromConfigSelectsProvider(t *testing.T) {
	p, err := FromConfig(configFor("paypal"))
	require.NoError(t, err)
	assert.Equal(t, SlugPayPal, p.Slug())

	_, err = FromConfig(configFor("stripe"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
