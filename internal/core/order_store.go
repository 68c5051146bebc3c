package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderSelect = `
	SELECT o.id, o.vendor_id, a.username, o.customer_id, o.status, o.total, o.discount_percentage,
	       o.discounted_total, o.payment_status, o.invoice_number, o.notes, o.cancellation_reason,
	       o.version, o.created_at, o.updated_at, o.completed_at
	FROM orders o
	JOIN agents a ON a.id = o.vendor_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.VendorID, &o.VendorUsername, &o.CustomerID, &o.Status, &o.Total, &o.DiscountPercentage,
		&o.DiscountedTotal, &o.PaymentStatus, &o.InvoiceNumber, &o.Notes, &o.CancellationReason,
		&o.Version, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// loadOrder reads an order header and its items. With forUpdate the order row is
// locked until the surrounding transaction ends.
func loadOrder(ctx context.Context, q pgxQuerier, id uuid.UUID, forUpdate bool) (*Order, error) {
	query := orderSelect + ` WHERE o.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF o`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("order", id)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	o.Items, err = loadOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func loadOrderItems(ctx context.Context, q pgxQuerier, orderID uuid.UUID) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.position, i.product_id, p.name, i.quantity, i.unit_price, i.subtotal,
		       i.out_of_stock, i.stock_deducted, i.estimated_arrival_date, i.estimated_arrival_note,
		       i.promotion_id, i.promotion_instance_id, i.promotion_pack_price, i.is_promotion_item, i.is_free_item
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []LineItem{}
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Position, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &it.OutOfStock, &it.StockDeducted, &it.EstimatedArrivalDate,
			&it.EstimatedArrivalNote, &it.PromotionID, &it.PromotionInstanceID, &it.PromotionPackPrice,
			&it.IsPromotionItem, &it.IsFreeItem); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertOrderTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, vendor_id, customer_id, status, total, discount_percentage, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		RETURNING version, created_at, updated_at
	`, o.ID, o.VendorID, o.CustomerID, o.Status, o.Total, o.PaymentStatus, o.Notes).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	for i := range o.Items {
		if err := insertOrderItemTx(ctx, tx, &o.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertOrderItemTx(ctx context.Context, tx pgx.Tx, it *LineItem) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_items (id, order_id, position, product_id, quantity, unit_price, subtotal,
			out_of_stock, stock_deducted, estimated_arrival_date, estimated_arrival_note,
			promotion_id, promotion_instance_id, promotion_pack_price, is_promotion_item, is_free_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, it.ID, it.OrderID, it.Position, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal,
		it.OutOfStock, it.StockDeducted, it.EstimatedArrivalDate, it.EstimatedArrivalNote,
		it.PromotionID, it.PromotionInstanceID, it.PromotionPackPrice, it.IsPromotionItem, it.IsFreeItem)
	if err != nil {
		return fmt.Errorf("failed to insert order item %d: %w", it.Position, err)
	}
	return nil
}

// saveOrderHeaderTx writes the mutable header fields guarded by the version the
// order was read at, and advances o.Version.
func saveOrderHeaderTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	err := tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $1, total = $2, discount_percentage = $3, discounted_total = $4, payment_status = $5,
		    invoice_number = $6, notes = $7, cancellation_reason = $8, completed_at = $9,
		    version = version + 1, updated_at = now()
		WHERE id = $10 AND version = $11
		RETURNING version, updated_at
	`, o.Status, o.Total, o.DiscountPercentage, o.DiscountedTotal, o.PaymentStatus,
		o.InvoiceNumber, o.Notes, o.CancellationReason, o.CompletedAt,
		o.ID, o.Version).Scan(&o.Version, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order %s: %w", o.ID, ErrConcurrentModification)
		}
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	return nil
}
