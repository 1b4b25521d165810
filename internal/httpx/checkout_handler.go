package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-shop-checkout.git/internal/cart"
	"github.com/ariefcatur/go-shop-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/signer"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
	Carts    *cart.Service
	Sessions *Sessions

	Receipt  *signer.Signer
	Tracking *signer.Signer

	BaseURL string
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.startCheckout)
	r.Get("/payment/return", h.paymentReturn)
	r.Get("/payment/cancel", h.paymentCancel)
}

type checkoutReq struct {
	Email string `json:"email"`
}

func (h *CheckoutHandler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // body optional for logged-in users
	}
	email := strings.TrimSpace(req.Email)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	sid := h.Sessions.SessionID(w, r)
	userID := h.Sessions.UserID(ctx, sid)

	crt, err := h.Carts.Load(ctx, sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, issues, err := h.Checkout.Begin(ctx, crt, userID, email,
		h.BaseURL+"/payment/return", h.BaseURL+"/payment/cancel")
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "Your cart is empty.")
		case errors.Is(err, checkout.ErrEmailRequired):
			writeError(w, http.StatusBadRequest, "Please enter your email to continue.")
		case errors.Is(err, checkout.ErrProvider), errors.Is(err, checkout.ErrNoApproval):
			// order (if created) stays pending; buyer goes back to the cart
			writeError(w, http.StatusBadGateway, "Error connecting to the payment provider. Please try again.")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if len(issues) > 0 {
		writeJSON(w, http.StatusConflict, map[string]any{"issues": issues})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     res.Order.ID,
		"redirect_url": res.RedirectURL,
	})
}

func (h *CheckoutHandler) paymentReturn(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing payment token.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.Checkout.CompletePayment(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			writeError(w, http.StatusNotFound, "Order not found.")
		case errors.Is(err, checkout.ErrProvider):
			writeError(w, http.StatusBadGateway, "Payment capture failed. Please contact support.")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	sid := h.Sessions.SessionID(w, r)
	if err := h.Carts.Clear(ctx, sid); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{"order": order}
	if order.UserID == "" {
		// guest: time-boxed signed links instead of an account page
		resp["receipt_token"] = h.Receipt.Sign(order.ID)
		resp["tracking_token"] = h.Tracking.Sign(order.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) paymentCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment process cancelled."})
}
