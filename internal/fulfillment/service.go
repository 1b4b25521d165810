// Package fulfillment consumes payment events and makes sure every paid
// order ends up with a tracking row, even when the HTTP callback path that
// normally creates it was interrupted.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
	"github.com/ariefcatur/go-shop-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout.git/internal/tracking"
)

type OrderGetter interface {
	Get(ctx context.Context, orderID int64) (*orders.Order, error)
}

type TrackingInitializer interface {
	GetOrCreate(ctx context.Context, order *orders.Order) (*tracking.Tracking, error)
}

type Service struct {
	Orders      OrderGetter
	Tracking    TrackingInitializer
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderPaid is the consumer handler for order.paid.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPaid {
		return nil // ignore
	}

	// dedup by event id; a replayed event is a no-op
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	order, err := s.Orders.Get(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			log.Printf("order.paid for unknown order %d, skipping", p.OrderID)
			return nil
		}
		return err
	}

	// GetOrCreate is idempotent, the normal callback path may have run first.
	_, err = s.Tracking.GetOrCreate(ctx, order)
	return err
}
