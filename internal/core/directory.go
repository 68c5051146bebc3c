package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CustomerDirectory resolves customers and keeps their running purchase total.
type CustomerDirectory interface {
	GetCustomerTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Customer, error)
	// RegisterPurchaseTx increments the customer's purchase total inside tx.
	RegisterPurchaseTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error
}

type customerDirectory struct{}

// NewCustomerDirectory constructs a CustomerDirectory backed by the customers table.
func NewCustomerDirectory() CustomerDirectory {
	return customerDirectory{}
}

func (customerDirectory) GetCustomerTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Customer, error) {
	var c Customer
	err := tx.QueryRow(ctx, `
		SELECT id, name, total_purchases, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.TotalPurchases, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("customer", id)
		}
		return nil, fmt.Errorf("failed to load customer %s: %w", id, err)
	}
	return &c, nil
}

func (customerDirectory) RegisterPurchaseTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customers SET total_purchases = total_purchases + $1 WHERE id = $2
	`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to register customer purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("customer", id)
	}
	return nil
}
