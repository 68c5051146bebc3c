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

type DiscountType string

const (
	DiscountAdmin10         DiscountType = "ADMIN_10"
	DiscountAdmin12         DiscountType = "ADMIN_12"
	DiscountAdmin15         DiscountType = "ADMIN_15"
	DiscountAdminCustom     DiscountType = "ADMIN_CUSTOM"
	DiscountOwnerAdditional DiscountType = "OWNER_ADDITIONAL"
)

var presetPercentages = map[DiscountType]decimal.Decimal{
	DiscountAdmin10: decimal.NewFromInt(10),
	DiscountAdmin12: decimal.NewFromInt(12),
	DiscountAdmin15: decimal.NewFromInt(15),
}

// PresetPercentage returns the fixed percentage of a preset discount type.
func PresetPercentage(t DiscountType) (decimal.Decimal, bool) {
	p, ok := presetPercentages[t]
	return p, ok
}

type DiscountStatus string

const (
	DiscountStatusApplied DiscountStatus = "APPLIED"
	DiscountStatusRevoked DiscountStatus = "REVOKED"
)

// OrderDiscount is an append-only discount record. Revocation flips the status and
// stamps who revoked it; rows are never deleted.
type OrderDiscount struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	Percentage decimal.Decimal `json:"percentage"`
	Type       DiscountType    `json:"type"`
	Status     DiscountStatus  `json:"status"`
	Reason     string          `json:"reason"`
	AppliedBy  uuid.UUID       `json:"applied_by"`
	AppliedAt  time.Time       `json:"applied_at"`
	RevokedBy  *uuid.UUID      `json:"revoked_by,omitempty"`
	RevokedAt  *time.Time      `json:"revoked_at,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// DeriveDiscount sums the active percentages, caps the sum at 100 and returns the
// capped percentage, the discount amount rounded half-up to cents and the discounted total.
func DeriveDiscount(raw decimal.Decimal, active []decimal.Decimal) (pct, amount, discounted decimal.Decimal) {
	pct = decimal.Zero
	for _, p := range active {
		pct = pct.Add(p)
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	amount = raw.Mul(pct).Div(hundred).Round(2)
	discounted = raw.Sub(amount)
	return pct, amount, discounted
}

// DiscountService is the discount ledger of completed orders.
type DiscountService interface {
	// ApplyDiscount records a discount of any percentage in (0, 100].
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, pct decimal.Decimal, dtype DiscountType, reason string, actorID uuid.UUID) (*OrderDiscount, error)
	// ApplyPreset records one of the fixed ADMIN_10/12/15 discounts.
	ApplyPreset(ctx context.Context, orderID uuid.UUID, dtype DiscountType, reason string, actorID uuid.UUID) (*OrderDiscount, error)
	// ApplyOwnerAdditional records an OWNER_ADDITIONAL discount. Only owners may apply it.
	ApplyOwnerAdditional(ctx context.Context, orderID uuid.UUID, pct decimal.Decimal, reason string, actorID uuid.UUID) (*OrderDiscount, error)
	RevokeDiscount(ctx context.Context, discountID uuid.UUID, actorID uuid.UUID) (*OrderDiscount, error)
	ListDiscounts(ctx context.Context, orderID uuid.UUID) ([]OrderDiscount, error)
}

type discountService struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewDiscountService(pool *pgxpool.Pool, log logrus.FieldLogger, now func() time.Time) DiscountService {
	if now == nil {
		now = time.Now
	}
	return &discountService{pool: pool, log: log, now: now}
}

const discountColumns = `id, order_id, percentage, type, status, reason, applied_by, applied_at, revoked_by, revoked_at`

func scanDiscount(row pgx.Row) (*OrderDiscount, error) {
	var d OrderDiscount
	if err := row.Scan(&d.ID, &d.OrderID, &d.Percentage, &d.Type, &d.Status, &d.Reason,
		&d.AppliedBy, &d.AppliedAt, &d.RevokedBy, &d.RevokedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *discountService) ApplyPreset(ctx context.Context, orderID uuid.UUID, dtype DiscountType, reason string, actorID uuid.UUID) (*OrderDiscount, error) {
	pct, ok := PresetPercentage(dtype)
	if !ok {
		return nil, validationErrorf("%q is not a preset discount type", dtype)
	}
	return s.apply(ctx, orderID, pct, dtype, reason, actorID)
}

func (s *discountService) ApplyOwnerAdditional(ctx context.Context, orderID uuid.UUID, pct decimal.Decimal, reason string, actorID uuid.UUID) (*OrderDiscount, error) {
	return s.apply(ctx, orderID, pct, DiscountOwnerAdditional, reason, actorID)
}

func (s *discountService) ApplyDiscount(ctx context.Context, orderID uuid.UUID, pct decimal.Decimal, dtype DiscountType, reason string, actorID uuid.UUID) (*OrderDiscount, error) {
	if preset, ok := PresetPercentage(dtype); ok && !pct.Equal(preset) {
		return nil, validationErrorf("%s discounts are fixed at %s%%", dtype, preset)
	}
	return s.apply(ctx, orderID, pct, dtype, reason, actorID)
}

func (s *discountService) apply(ctx context.Context, orderID uuid.UUID, pct decimal.Decimal, dtype DiscountType, reason string, actorID uuid.UUID) (*OrderDiscount, error) {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return nil, validationErrorf("discount percentage must be greater than 0 and at most 100, got %s", pct)
	}
	switch dtype {
	case DiscountAdmin10, DiscountAdmin12, DiscountAdmin15, DiscountAdminCustom, DiscountOwnerAdditional:
	default:
		return nil, validationErrorf("unknown discount type %q", dtype)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	actor, err := getAgent(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if dtype == DiscountOwnerAdditional && actor.Role != RoleOwner {
		return nil, businessErrorf("only an owner may apply %s discounts", DiscountOwnerAdditional)
	}

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderStatusCompleted {
		return nil, businessErrorf("discounts can only be applied to completed orders; order %s is %s", o.ID, o.Status)
	}

	d, err := scanDiscount(tx.QueryRow(ctx, `
		INSERT INTO order_discounts (id, order_id, percentage, type, status, reason, applied_by, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+discountColumns,
		uuid.New(), o.ID, pct, dtype, DiscountStatusApplied, strings.TrimSpace(reason), actorID, s.now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert discount: %w", err)
	}

	if err := recomputeDiscountTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit discount: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":         o.ID,
		"discount_id":      d.ID,
		"type":             d.Type,
		"percentage":       d.Percentage.String(),
		"discounted_total": o.EffectiveTotal().StringFixed(2),
	}).Info("discount applied")
	return d, nil
}

func (s *discountService) RevokeDiscount(ctx context.Context, discountID uuid.UUID, actorID uuid.UUID) (*OrderDiscount, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getAgent(ctx, tx, actorID); err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT order_id FROM order_discounts WHERE id = $1`, discountID).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("discount", discountID)
		}
		return nil, fmt.Errorf("failed to load discount %s: %w", discountID, err)
	}
	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}

	d, err := scanDiscount(tx.QueryRow(ctx, `SELECT `+discountColumns+` FROM order_discounts WHERE id = $1 FOR UPDATE`, discountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock discount %s: %w", discountID, err)
	}
	if d.Status == DiscountStatusRevoked {
		return nil, businessErrorf("discount %s is already revoked", d.ID)
	}

	now := s.now()
	if _, err := tx.Exec(ctx, `
		UPDATE order_discounts SET status = $1, revoked_by = $2, revoked_at = $3 WHERE id = $4
	`, DiscountStatusRevoked, actorID, now, d.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke discount: %w", err)
	}
	d.Status, d.RevokedBy, d.RevokedAt = DiscountStatusRevoked, &actorID, &now

	if err := recomputeDiscountTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit discount revocation: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "discount_id": d.ID}).Info("discount revoked")
	return d, nil
}

func (s *discountService) ListDiscounts(ctx context.Context, orderID uuid.UUID) ([]OrderDiscount, error) {
	if _, err := loadOrder(ctx, s.pool, orderID, false); err != nil {
		return nil, err
	}
	return listDiscounts(ctx, s.pool, orderID)
}

func listDiscounts(ctx context.Context, q pgxQuerier, orderID uuid.UUID) ([]OrderDiscount, error) {
	rows, err := q.Query(ctx, `SELECT `+discountColumns+` FROM order_discounts WHERE order_id = $1 ORDER BY applied_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discounts: %w", err)
	}
	defer rows.Close()

	discounts := []OrderDiscount{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		discounts = append(discounts, *d)
	}
	return discounts, rows.Err()
}

// recomputeDiscountTx re-derives the discount fields and the payment status of a
// locked order from its active discounts.
func recomputeDiscountTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	discounts, err := listDiscounts(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	var active []decimal.Decimal
	for _, d := range discounts {
		if d.Status == DiscountStatusApplied {
			active = append(active, d.Percentage)
		}
	}
	pct, _, discounted := DeriveDiscount(o.Total, active)
	o.DiscountPercentage = pct
	o.DiscountedTotal = &discounted
	return refreshPaymentStatusTx(ctx, tx, o)
}
