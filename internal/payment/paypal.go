package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-checkout.git/internal/config"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
)

const SlugPayPal = "paypal"

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

type PayPal struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client
}

func NewPayPal(cfg config.Payment) *PayPal {
	base := paypalSandboxURL
	if strings.ToLower(cfg.PayPalEnv) == "live" {
		base = paypalLiveURL
	}
	return &PayPal{
		baseURL:      base,
		clientID:     cfg.PayPalClientID,
		clientSecret: cfg.PayPalClientSecret,
		httpc:        &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *PayPal) Slug() string { return SlugPayPal }

func (p *PayPal) CreatePayment(ctx context.Context, order *orders.Order, returnURL, cancelURL string) (PaymentResult, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": strconv.FormatInt(order.ID, 10),
			"amount": map[string]string{
				"currency_code": order.Currency,
				"value":         order.Subtotal.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}

	var resp struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := p.post(ctx, "/v2/checkout/orders", payload, &resp); err != nil {
		return PaymentResult{}, fmt.Errorf("paypal create order: %w", err)
	}

	redirect := ""
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			redirect = l.Href
			break
		}
	}
	return PaymentResult{Approved: true, ProviderOrderID: resp.ID, RedirectURL: redirect}, nil
}

func (p *PayPal) CapturePayment(ctx context.Context, providerOrderID string) (CaptureResult, error) {
	var resp struct {
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID string `json:"id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	if err := p.post(ctx, path, nil, &resp); err != nil {
		return CaptureResult{}, fmt.Errorf("paypal capture: %w", err)
	}

	if len(resp.PurchaseUnits) == 0 || len(resp.PurchaseUnits[0].Payments.Captures) == 0 {
		return CaptureResult{}, fmt.Errorf("paypal capture: no capture in response")
	}
	return CaptureResult{Approved: true, CaptureID: resp.PurchaseUnits[0].Payments.Captures[0].ID}, nil
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("oauth token: status %d", res.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

func (p *PayPal) post(ctx context.Context, path string, payload, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
