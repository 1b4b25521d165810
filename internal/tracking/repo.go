package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepo struct{ DB *pgxpool.Pool }

const trackingColumns = `id, order_id, status, carrier, tracking_number, delivery_notes,
	processing_at, packed_at, shipped_at, delivered_at, created_at, updated_at`

func scanTracking(row pgx.Row) (*Tracking, error) {
	var t Tracking
	err := row.Scan(&t.ID, &t.OrderID, &t.Status, &t.Carrier, &t.TrackingNumber, &t.DeliveryNotes,
		&t.ProcessingAt, &t.PackedAt, &t.ShippedAt, &t.DeliveredAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetForOrder returns nil, nil when no tracking row exists.
func (r *PGRepo) GetForOrder(ctx context.Context, orderID int64) (*Tracking, error) {
	t, err := scanTracking(r.DB.QueryRow(ctx,
		`SELECT `+trackingColumns+` FROM order_tracking WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetOrCreate lazily creates the tracking row. The insert sets processing_at;
// a concurrent creator loses the ON CONFLICT race and both return the same
// row, so the milestone is only ever stamped once.
func (r *PGRepo) GetOrCreate(ctx context.Context, orderID int64) (*Tracking, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO order_tracking (order_id, status, processing_at)
		VALUES ($1, $2, now())
		ON CONFLICT (order_id) DO NOTHING`, orderID, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("insert tracking: %w", err)
	}

	t, err := scanTracking(tx.QueryRow(ctx,
		`SELECT `+trackingColumns+` FROM order_tracking WHERE order_id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, fmt.Errorf("select tracking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Update persists the tracking row and, for an accepted transition, appends
// its audit event in the same transaction.
func (r *PGRepo) Update(ctx context.Context, t *Tracking, ev *Event) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if ev != nil {
		err = tx.QueryRow(ctx, `
			INSERT INTO order_tracking_events (tracking_id, from_status, to_status, actor, note)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			ev.TrackingID, ev.FromStatus, ev.ToStatus, ev.Actor, ev.Note).
			Scan(&ev.ID, &ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert tracking event: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_tracking SET
			status = $2, carrier = $3, tracking_number = $4, delivery_notes = $5,
			processing_at = $6, packed_at = $7, shipped_at = $8, delivered_at = $9,
			updated_at = now()
		WHERE id = $1`,
		t.ID, t.Status, t.Carrier, t.TrackingNumber, t.DeliveryNotes,
		t.ProcessingAt, t.PackedAt, t.ShippedAt, t.DeliveredAt)
	if err != nil {
		return fmt.Errorf("update tracking: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PGRepo) Events(ctx context.Context, trackingID int64) ([]Event, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tracking_id, from_status, to_status, actor, note, created_at
		FROM order_tracking_events
		WHERE tracking_id = $1 ORDER BY created_at, id`, trackingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.TrackingID, &ev.FromStatus, &ev.ToStatus, &ev.Actor, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
