package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const invoiceSequenceName = "invoice"

// InvoiceSequencer hands out gapless, strictly increasing invoice numbers.
type InvoiceSequencer interface {
	// NextInvoiceNumberTx takes the next number inside the caller's transaction. The
	// sequence row stays locked until tx ends, so a rolled-back order leaves no gap.
	NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (int64, error)
}

type invoiceSequencer struct {
	start int64
}

// NewInvoiceSequencer constructs an InvoiceSequencer whose first number is start.
func NewInvoiceSequencer(start int64) InvoiceSequencer {
	if start < 1 {
		start = 1
	}
	return &invoiceSequencer{start: start}
}

func (s *invoiceSequencer) NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (int64, error) {
	// Concurrency-safe gapless sequence generation
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (name, last_number)
		VALUES ($1, $2)
		ON CONFLICT (name)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, invoiceSequenceName, s.start).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to generate invoice number: %w", err)
	}
	return n, nil
}
