package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout.git/internal/cart"
)

// ErrStockIntegrity means a guarded decrement affected zero rows even though
// the row was locked and validated. That is a logic/race bug, never a normal
// out-of-stock outcome, and it aborts the whole transaction.
var ErrStockIntegrity = errors.New("stock integrity violation")

type lockedProduct struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int
	IsActive bool
}

// ReserveStock is the authoritative "checkout begin": it locks the affected
// product rows in ascending id order, re-validates every cart line under
// lock, decrements stock with a guarded update and creates the pending order
// plus its line items — all in one transaction. Any validation issue rolls
// everything back; partial checkouts are never committed.
//
// Returns (order, nil, nil) on success, (nil, issues, nil) when lines failed
// validation, (nil, nil, err) on infrastructure or integrity failure.
func (r *Repo) ReserveStock(ctx context.Context, crt cart.Cart, userID, email, currency string) (*Order, []StockIssue, error) {
	if len(crt.Lines) == 0 {
		return nil, nil, nil
	}

	// Ascending id order makes lock acquisition a strict total order, so two
	// checkouts sharing products cannot deadlock.
	productIDs := crt.ProductIDs()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := lockProducts(ctx, tx, productIDs)
	if err != nil {
		return nil, nil, err
	}

	var issues []StockIssue
	for _, pid := range productIDs {
		qty := crt.Lines[pid].Qty
		p, ok := locked[pid]

		if !ok || !p.IsActive {
			name := "Unknown item"
			if ok {
				name = p.Name
			}
			issues = append(issues, StockIssue{ProductID: pid, ProductName: name, Requested: qty, Available: 0})
			continue
		}
		if qty < 1 || qty > p.Stock {
			issues = append(issues, StockIssue{ProductID: pid, ProductName: p.Name, Requested: qty, Available: p.Stock})
		}
	}
	if len(issues) > 0 {
		return nil, issues, nil // rollback via defer
	}

	order := &Order{
		UserID:   userID,
		Email:    email,
		Status:   StatusPending,
		Currency: currency,
		Subtotal: crt.TotalPrice(),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, email, status, currency, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.Email, order.Status, order.Currency, order.Subtotal).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert order: %w", err)
	}

	for _, pid := range productIDs {
		line := crt.Lines[pid]
		qty := line.Qty

		// Guarded decrement: the lock above should make this always succeed,
		// the guard catches a racing writer anyway.
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND is_active AND stock >= $2`, pid, qty)
		if err != nil {
			return nil, nil, fmt.Errorf("decrement stock for product %d: %w", pid, err)
		}
		if ct.RowsAffected() == 0 {
			return nil, nil, fmt.Errorf("product %d: stock changed under lock: %w", pid, ErrStockIntegrity)
		}

		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		item := OrderItem{
			OrderID:   order.ID,
			ProductID: pid,
			Qty:       qty,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Qty, item.UnitPrice, item.LineTotal).
			Scan(&item.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("insert order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return order, nil, nil
}

func lockProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]lockedProduct, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, name, price, stock, is_active FROM products
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]lockedProduct, len(ids))
	for rows.Next() {
		var p lockedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive); err != nil {
			return nil, err
		}
		locked[p.ID] = p
	}
	return locked, rows.Err()
}
