package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, email, status, currency, subtotal,
	payment_provider, COALESCE(provider_order_id, ''), COALESCE(provider_capture_id, ''),
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Email, &o.Status, &o.Currency, &o.Subtotal,
		&o.PaymentProvider, &o.ProviderOrderID, &o.ProviderCaptureID,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*Order, error) {
	if providerOrderID == "" {
		return nil, ErrNotFound
	}
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_order_id = $1`, providerOrderID))
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// SetProviderOrder persists the provider handshake result right after
// create_payment succeeds.
func (r *Repo) SetProviderOrder(ctx context.Context, orderID int64, provider, providerOrderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_provider = $2, provider_order_id = $3, updated_at = now()
		WHERE id = $1`, orderID, provider, providerOrderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid transitions a pending order to paid and stores the capture id.
// A second call for an already-paid order affects zero rows and returns the
// current row unchanged, which makes the payment callback safe to retry.
func (r *Repo) MarkPaid(ctx context.Context, orderID int64, captureID string) (*Order, error) {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $2, provider_capture_id = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		orderID, StatusPaid, captureID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	return r.Get(ctx, orderID)
}

func (r *Repo) itemsFor(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
