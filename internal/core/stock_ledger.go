package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger adjusts product quantities. It never blocks on insufficient stock:
// a decrease may leave the balance negative. Callers that must know whether stock
// was sufficient check before calling.
type StockLedger interface {
	// TX-scoped operations: work within a caller-provided transaction so stock
	// changes commit atomically with the order writes.
	DecreaseTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int, reason string, orderID *uuid.UUID) (*StockMovement, error)
	IncreaseTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int, reason string, orderID *uuid.UUID) (*StockMovement, error)

	// Movements returns the audit trail of a product, newest first.
	Movements(ctx context.Context, productID uuid.UUID) ([]StockMovement, error)
}

type stockLedger struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) StockLedger {
	return &stockLedger{pool: pool}
}

func (s *stockLedger) DecreaseTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int, reason string, orderID *uuid.UUID) (*StockMovement, error) {
	if qty <= 0 {
		return nil, validationErrorf("stock decrease quantity must be greater than zero, got %d", qty)
	}
	return s.move(ctx, tx, productID, -qty, reason, orderID)
}

func (s *stockLedger) IncreaseTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int, reason string, orderID *uuid.UUID) (*StockMovement, error) {
	if qty <= 0 {
		return nil, validationErrorf("stock increase quantity must be greater than zero, got %d", qty)
	}
	return s.move(ctx, tx, productID, qty, reason, orderID)
}

func (s *stockLedger) move(ctx context.Context, tx pgx.Tx, productID uuid.UUID, delta int, reason string, orderID *uuid.UUID) (*StockMovement, error) {
	var ownerID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(parent_product_id, id) FROM products WHERE id = $1
	`, productID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product", productID)
		}
		return nil, fmt.Errorf("failed to resolve stock owner for product %s: %w", productID, err)
	}

	var after int
	if err := tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $1 WHERE id = $2 RETURNING stock
	`, delta, ownerID).Scan(&after); err != nil {
		return nil, fmt.Errorf("failed to update stock for product %s: %w", ownerID, err)
	}

	m := &StockMovement{
		ProductID:   productID,
		OwnerID:     ownerID,
		Delta:       delta,
		StockBefore: after - delta,
		StockAfter:  after,
		Reason:      reason,
		OrderID:     orderID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_movements (product_id, owner_id, delta, stock_before, stock_after, reason, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, m.ProductID, m.OwnerID, m.Delta, m.StockBefore, m.StockAfter, m.Reason, m.OrderID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}
	return m, nil
}

func (s *stockLedger) Movements(ctx context.Context, productID uuid.UUID) ([]StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, owner_id, delta, stock_before, stock_after, reason, order_id, created_at
		FROM stock_movements
		WHERE product_id = $1 OR owner_id = $1
		ORDER BY id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.OwnerID, &m.Delta, &m.StockBefore, &m.StockAfter,
			&m.Reason, &m.OrderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
