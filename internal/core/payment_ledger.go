package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCheck    PaymentMethod = "CHECK"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodCredit   PaymentMethod = "CREDIT"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCheck, PaymentMethodCard, PaymentMethodCredit, PaymentMethodOther:
		return true
	}
	return false
}

const defaultCancellationReason = "no reason given"

// Payment is one entry of an order's payment log. Cancelled payments stay for audit
// but count towards no sum.
type Payment struct {
	ID                 uuid.UUID        `json:"id"`
	OrderID            uuid.UUID        `json:"order_id"`
	Amount             decimal.Decimal  `json:"amount"`
	Method             PaymentMethod    `json:"method"`
	PaymentDate        time.Time        `json:"payment_date"`
	ActualPaymentDate  *time.Time       `json:"actual_payment_date,omitempty"`
	WithinDeadline     *bool            `json:"within_deadline,omitempty"`
	DiscountApplied    *decimal.Decimal `json:"discount_applied,omitempty"`
	Notes              string           `json:"notes"`
	RegisteredBy       uuid.UUID        `json:"registered_by"`
	CreatedAt          time.Time        `json:"created_at"`
	IsCancelled        bool             `json:"is_cancelled"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID       `json:"cancelled_by,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
}

// RegisterPaymentInput carries a new payment.
type RegisterPaymentInput struct {
	OrderID           uuid.UUID
	Amount            decimal.Decimal
	Method            PaymentMethod
	ActorID           uuid.UUID
	ActualPaymentDate *time.Time
	WithinDeadline    *bool
	DiscountApplied   *decimal.Decimal
	Notes             string
}

// PaymentSummary is the derived payment position of an order.
type PaymentSummary struct {
	OrderID        uuid.UUID       `json:"order_id"`
	EffectiveTotal decimal.Decimal `json:"effective_total"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	Status         PaymentStatus   `json:"status"`
}

// DerivePaymentStatus maps the paid sum against the effective total.
func DerivePaymentStatus(paid, effectiveTotal decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentStatusPending
	case paid.GreaterThanOrEqual(effectiveTotal):
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

// PaymentService is the append-only payment ledger of completed orders.
type PaymentService interface {
	RegisterPayment(ctx context.Context, in RegisterPaymentInput) (*Payment, error)
	// CancelPayment marks a payment inactive. A blank reason is recorded as a default.
	CancelPayment(ctx context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) (*Payment, error)
	// RestorePayment reactivates a cancelled payment when it still fits the pending balance.
	RestorePayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	// ListPayments returns every payment of the order, cancelled ones included.
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	Summary(ctx context.Context, orderID uuid.UUID) (*PaymentSummary, error)
}

type paymentService struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewPaymentService(pool *pgxpool.Pool, log logrus.FieldLogger, now func() time.Time) PaymentService {
	if now == nil {
		now = time.Now
	}
	return &paymentService{pool: pool, log: log, now: now}
}

const paymentColumns = `id, order_id, amount, method, payment_date, actual_payment_date, within_deadline,
	discount_applied, notes, registered_by, created_at, is_cancelled, cancelled_at, cancelled_by, cancellation_reason`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.PaymentDate, &p.ActualPaymentDate, &p.WithinDeadline,
		&p.DiscountApplied, &p.Notes, &p.RegisteredBy, &p.CreatedAt, &p.IsCancelled, &p.CancelledAt, &p.CancelledBy,
		&p.CancellationReason)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *paymentService) RegisterPayment(ctx context.Context, in RegisterPaymentInput) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, validationErrorf("payment amount must be greater than zero")
	}
	if !in.Method.Valid() {
		return nil, validationErrorf("unknown payment method %q", in.Method)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, in.OrderID, true)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderStatusCompleted {
		return nil, businessErrorf("payments can only be registered on completed orders; order %s is %s", o.ID, o.Status)
	}
	if _, err := getAgent(ctx, tx, in.ActorID); err != nil {
		return nil, err
	}

	paid, err := sumActivePayments(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	pending := o.EffectiveTotal().Sub(paid)
	if in.Amount.GreaterThan(pending) {
		return nil, businessErrorf("payment of %s exceeds the pending balance of %s by %s",
			in.Amount.StringFixed(2), pending.StringFixed(2), in.Amount.Sub(pending).StringFixed(2))
	}

	p, err := scanPayment(tx.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, amount, method, payment_date, actual_payment_date, within_deadline,
			discount_applied, notes, registered_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+paymentColumns,
		uuid.New(), o.ID, in.Amount, in.Method, s.now(), in.ActualPaymentDate, in.WithinDeadline,
		in.DiscountApplied, in.Notes, in.ActorID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := refreshPaymentStatusTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "payment_id": p.ID, "amount": p.Amount.StringFixed(2), "status": o.PaymentStatus}).Info("payment registered")
	return p, nil
}

func (s *paymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) (*Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancellationReason
	}
	return s.toggle(ctx, paymentID, func(ctx context.Context, tx pgx.Tx, o *Order, p *Payment) error {
		if p.IsCancelled {
			return businessErrorf("payment %s is already cancelled", p.ID)
		}
		if _, err := getAgent(ctx, tx, actorID); err != nil {
			return err
		}
		now := s.now()
		_, err := tx.Exec(ctx, `
			UPDATE payments
			SET is_cancelled = true, cancelled_at = $1, cancelled_by = $2, cancellation_reason = $3
			WHERE id = $4
		`, now, actorID, reason, p.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel payment: %w", err)
		}
		p.IsCancelled, p.CancelledAt, p.CancelledBy, p.CancellationReason = true, &now, &actorID, reason
		return nil
	})
}

func (s *paymentService) RestorePayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	return s.toggle(ctx, paymentID, func(ctx context.Context, tx pgx.Tx, o *Order, p *Payment) error {
		if !p.IsCancelled {
			return businessErrorf("payment %s is not cancelled", p.ID)
		}
		paid, err := sumActivePayments(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		pending := o.EffectiveTotal().Sub(paid)
		if p.Amount.GreaterThan(pending) {
			return businessErrorf("restoring payment of %s exceeds the pending balance of %s by %s",
				p.Amount.StringFixed(2), pending.StringFixed(2), p.Amount.Sub(pending).StringFixed(2))
		}
		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET is_cancelled = false, cancelled_at = NULL, cancelled_by = NULL, cancellation_reason = ''
			WHERE id = $1
		`, p.ID)
		if err != nil {
			return fmt.Errorf("failed to restore payment: %w", err)
		}
		p.IsCancelled, p.CancelledAt, p.CancelledBy, p.CancellationReason = false, nil, nil, ""
		return nil
	})
}

// toggle locks the payment's order then the payment, applies change and re-derives
// the order's payment status.
func (s *paymentService) toggle(ctx context.Context, paymentID uuid.UUID, change func(context.Context, pgx.Tx, *Order, *Payment) error) (*Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT order_id FROM payments WHERE id = $1`, paymentID).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment", paymentID)
		}
		return nil, fmt.Errorf("failed to load payment %s: %w", paymentID, err)
	}
	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := change(ctx, tx, o, p); err != nil {
		return nil, err
	}
	if err := refreshPaymentStatusTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment change: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "payment_id": p.ID, "cancelled": p.IsCancelled, "status": o.PaymentStatus}).Info("payment state changed")
	return p, nil
}

func lockPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment", id)
		}
		return nil, fmt.Errorf("failed to lock payment %s: %w", id, err)
	}
	return p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("payment", paymentID)
		}
		return nil, fmt.Errorf("failed to load payment %s: %w", paymentID, err)
	}
	return p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	if _, err := loadOrder(ctx, s.pool, orderID, false); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *paymentService) Summary(ctx context.Context, orderID uuid.UUID) (*PaymentSummary, error) {
	o, err := loadOrder(ctx, s.pool, orderID, false)
	if err != nil {
		return nil, err
	}
	paid, err := sumActivePayments(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	effective := o.EffectiveTotal()
	pending := effective.Sub(paid)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	return &PaymentSummary{
		OrderID:        o.ID,
		EffectiveTotal: effective,
		TotalPaid:      paid,
		PendingBalance: pending,
		Status:         DerivePaymentStatus(paid, effective),
	}, nil
}

func sumActivePayments(ctx context.Context, q pgxQuerier, orderID uuid.UUID) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1 AND is_cancelled = false
	`, orderID).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments for order %s: %w", orderID, err)
	}
	return paid, nil
}

// refreshPaymentStatusTx re-derives and persists the payment status of a locked order.
func refreshPaymentStatusTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	paid, err := sumActivePayments(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	o.PaymentStatus = DerivePaymentStatus(paid, o.EffectiveTotal())
	return saveOrderHeaderTx(ctx, tx, o)
}
