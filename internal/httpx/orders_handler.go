package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-shop-checkout.git/internal/checkout"
	kafkax "github.com/ariefcatur/go-shop-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/signer"
	"github.com/ariefcatur/go-shop-checkout.git/internal/tracking"
)

type OrdersHandler struct {
	Orders   *orders.Repo
	Tracking *tracking.Service
	Sessions *Sessions

	Receipt  *signer.Signer
	Track    *signer.Signer
	StaffKey string

	TrackingEvents checkout.Publisher // order.tracking.updated, optional
	ServiceName    string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/guest/{token}", h.guestReceipt)
	r.Get("/orders/track/{token}", h.guestTrack)
	r.Get("/orders/{id}/tracking", h.orderTracking)
	r.Post("/orders/{id}/tracking", h.updateTracking)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sid := h.Sessions.SessionID(w, r)
	userID := h.Sessions.UserID(ctx, sid)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	list, err := h.Orders.ListByUser(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// resolveGuestOrder maps a signed token to an order, failing uniformly with
// "not found". An order owned by an account additionally requires the
// requester to be that account; a valid token alone is not enough.
func (h *OrdersHandler) resolveGuestOrder(w http.ResponseWriter, r *http.Request, s *signer.Signer) (*orders.Order, bool) {
	ctx := r.Context()

	orderID, ok := s.Verify(chi.URLParam(r, "token"))
	if !ok {
		writeError(w, http.StatusNotFound, "Invalid or expired order link.")
		return nil, false
	}

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Order not found.")
		return nil, false
	}

	if order.UserID != "" {
		sid := h.Sessions.SessionID(w, r)
		if h.Sessions.UserID(ctx, sid) != order.UserID {
			// not-found, not forbidden: don't confirm the order exists
			writeError(w, http.StatusNotFound, "Order not found.")
			return nil, false
		}
	}
	return order, true
}

func (h *OrdersHandler) guestReceipt(w http.ResponseWriter, r *http.Request) {
	order, ok := h.resolveGuestOrder(w, r, h.Receipt)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *OrdersHandler) guestTrack(w http.ResponseWriter, r *http.Request) {
	order, ok := h.resolveGuestOrder(w, r, h.Track)
	if !ok {
		return
	}
	h.renderTracking(w, r, order)
}

func (h *OrdersHandler) orderTracking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sid := h.Sessions.SessionID(w, r)
	userID := h.Sessions.UserID(ctx, sid)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil || order.UserID != userID {
		writeError(w, http.StatusNotFound, "Order not found.")
		return
	}
	h.renderTracking(w, r, order)
}

func (h *OrdersHandler) renderTracking(w http.ResponseWriter, r *http.Request, order *orders.Order) {
	ctx := r.Context()

	t, err := h.Tracking.GetOrCreate(ctx, order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Tracking not available.")
		return
	}

	events, err := h.Tracking.Events(ctx, t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":    order,
		"tracking": t,
		"events":   events,
	})
}

type updateTrackingReq struct {
	Status         string `json:"status"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	DeliveryNotes  string `json:"delivery_notes"`
	Note           string `json:"note"`
}

func (h *OrdersHandler) updateTracking(w http.ResponseWriter, r *http.Request) {
	if h.StaffKey == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Staff-Key")), []byte(h.StaffKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "staff key required")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateTrackingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Order not found.")
		return
	}

	before, err := h.Tracking.GetOrCreate(ctx, order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t, issues, err := h.Tracking.UpdateStatus(ctx, order, tracking.Update{
		NewStatus:      tracking.Status(req.Status),
		Actor:          "staff",
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		DeliveryNotes:  req.DeliveryNotes,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(issues) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"issues": issues})
		return
	}

	if before != nil && before.Status != t.Status {
		h.publishTrackingUpdated(order.ID, before.Status, t.Status)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracking": t})
}

func (h *OrdersHandler) publishTrackingUpdated(orderID int64, from, to tracking.Status) {
	if h.TrackingEvents == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventTrackingUpdated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.ServiceName,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload: kafkax.MustMarshal(orders.TrackingUpdatedPayload{
			OrderID:    orderID,
			FromStatus: string(from),
			ToStatus:   string(to),
		}),
	}
	h.TrackingEvents.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventTrackingUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
