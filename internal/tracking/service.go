package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
)

type Repo interface {
	GetForOrder(ctx context.Context, orderID int64) (*Tracking, error)
	GetOrCreate(ctx context.Context, orderID int64) (*Tracking, error)
	Update(ctx context.Context, t *Tracking, ev *Event) error
	Events(ctx context.Context, trackingID int64) ([]Event, error)
}

type Service struct {
	Repo Repo
}

// Update carries one staff-side tracking edit. NewStatus equal to the
// current status is a metadata-only edit, not a transition.
type Update struct {
	NewStatus      Status
	Actor          string
	Carrier        string
	TrackingNumber string
	DeliveryNotes  string
	Note           string
}

// GetOrCreate never creates a row for a non-paid order; it only returns a
// pre-existing one (or nil). For paid orders creation is lazy and idempotent.
func (s *Service) GetOrCreate(ctx context.Context, order *orders.Order) (*Tracking, error) {
	if order.Status != orders.StatusPaid {
		return s.Repo.GetForOrder(ctx, order.ID)
	}
	return s.Repo.GetOrCreate(ctx, order.ID)
}

func (s *Service) Events(ctx context.Context, t *Tracking) ([]Event, error) {
	return s.Repo.Events(ctx, t.ID)
}

// UpdateStatus drives the fulfillment state machine. Expected failures come
// back as issues; the tracking row is untouched unless the whole update is
// accepted.
func (s *Service) UpdateStatus(ctx context.Context, order *orders.Order, upd Update) (*Tracking, []Issue, error) {
	if order.Status == orders.StatusCanceled {
		return nil, []Issue{{Code: "canceled", Message: "Tracking cannot be updated for canceled orders."}}, nil
	}
	if order.Status != orders.StatusPaid {
		return nil, []Issue{{Code: "not_paid", Message: "Tracking can only be updated for paid orders."}}, nil
	}

	t, err := s.GetOrCreate(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, []Issue{{Code: "missing_tracking", Message: "Tracking could not be created for this order."}}, nil
	}

	var ev *Event
	if upd.NewStatus != t.Status {
		if !CanTransition(t.Status, upd.NewStatus) {
			return nil, []Issue{{
				Code:    "invalid_transition",
				Message: fmt.Sprintf("Cannot move from '%s' to '%s'.", t.Status, upd.NewStatus),
			}}, nil
		}
		ev = &Event{
			TrackingID: t.ID,
			FromStatus: t.Status,
			ToStatus:   upd.NewStatus,
			Actor:      upd.Actor,
			Note:       strings.TrimSpace(upd.Note),
		}
		t.Status = upd.NewStatus
	}

	t.Carrier = strings.TrimSpace(upd.Carrier)
	t.TrackingNumber = strings.TrimSpace(upd.TrackingNumber)
	t.DeliveryNotes = strings.TrimSpace(upd.DeliveryNotes)

	setMilestone(t, time.Now())

	if err := s.Repo.Update(ctx, t, ev); err != nil {
		return nil, nil, err
	}
	return t, nil, nil
}

// setMilestone records the first arrival into the current status. Already-set
// timestamps stay as they are.
func setMilestone(t *Tracking, now time.Time) {
	switch t.Status {
	case StatusProcessing:
		if t.ProcessingAt == nil {
			t.ProcessingAt = &now
		}
	case StatusPacked:
		if t.PackedAt == nil {
			t.PackedAt = &now
		}
	case StatusShipped:
		if t.ShippedAt == nil {
			t.ShippedAt = &now
		}
	case StatusDelivered:
		if t.DeliveredAt == nil {
			t.DeliveredAt = &now
		}
	}
}
