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

const minTransferYear = 2020

// PaymentTransfer reassigns part of a payment's collection credit from the order's
// vendor to another agent for a target month.
type PaymentTransfer struct {
	ID               uuid.UUID       `json:"id"`
	PaymentID        uuid.UUID       `json:"payment_id"`
	OriginAgentID    uuid.UUID       `json:"origin_agent_id"`
	DestAgentID      uuid.UUID       `json:"dest_agent_id"`
	Amount           decimal.Decimal `json:"amount"`
	TargetMonth      int             `json:"target_month"`
	TargetYear       int             `json:"target_year"`
	Reason           string          `json:"reason"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	IsRevoked        bool            `json:"is_revoked"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
	RevokedBy        *uuid.UUID      `json:"revoked_by,omitempty"`
	RevocationReason string          `json:"revocation_reason,omitempty"`
}

// CreateTransferInput carries a transfer request. A nil Amount transfers everything available.
type CreateTransferInput struct {
	PaymentID   uuid.UUID
	DestAgentID uuid.UUID
	Amount      *decimal.Decimal
	TargetMonth int
	TargetYear  int
	Reason      string
	ActorID     uuid.UUID
}

// Validate checks the request shape before anything is read.
func (in CreateTransferInput) Validate() error {
	if in.TargetMonth < 1 || in.TargetMonth > 12 {
		return validationErrorf("target month must be between 1 and 12, got %d", in.TargetMonth)
	}
	if in.TargetYear < minTransferYear {
		return validationErrorf("target year must be %d or later, got %d", minTransferYear, in.TargetYear)
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return validationErrorf("transfer amount must be greater than zero")
	}
	return nil
}

// AvailableBalance is the payment amount minus every non-revoked transfer.
func AvailableBalance(paymentAmount decimal.Decimal, transfers []PaymentTransfer) decimal.Decimal {
	available := paymentAmount
	for _, t := range transfers {
		if !t.IsRevoked {
			available = available.Sub(t.Amount)
		}
	}
	return available
}

// TransferService is the payment transfer ledger.
type TransferService interface {
	CreateTransfer(ctx context.Context, in CreateTransferInput) (*PaymentTransfer, error)
	RevokeTransfer(ctx context.Context, transferID uuid.UUID, reason string, actorID uuid.UUID) (*PaymentTransfer, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentTransfer, error)
	ListByOriginAgent(ctx context.Context, agentID uuid.UUID) ([]PaymentTransfer, error)
	// ListByDestAgent returns transfers received by the agent or any identity sharing its canonical id.
	ListByDestAgent(ctx context.Context, agentID uuid.UUID) ([]PaymentTransfer, error)
	AvailableBalance(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
}

type transferService struct {
	pool    *pgxpool.Pool
	aliases AgentAliases
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewTransferService(pool *pgxpool.Pool, aliases AgentAliases, log logrus.FieldLogger, now func() time.Time) TransferService {
	if now == nil {
		now = time.Now
	}
	return &transferService{pool: pool, aliases: aliases, log: log, now: now}
}

const transferColumns = `id, payment_id, origin_agent_id, dest_agent_id, amount, target_month, target_year,
	reason, created_by, created_at, is_revoked, revoked_at, revoked_by, revocation_reason`

func scanTransfer(row pgx.Row) (*PaymentTransfer, error) {
	var t PaymentTransfer
	if err := row.Scan(&t.ID, &t.PaymentID, &t.OriginAgentID, &t.DestAgentID, &t.Amount, &t.TargetMonth, &t.TargetYear,
		&t.Reason, &t.CreatedBy, &t.CreatedAt, &t.IsRevoked, &t.RevokedAt, &t.RevokedBy, &t.RevocationReason); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *transferService) CreateTransfer(ctx context.Context, in CreateTransferInput) (*PaymentTransfer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.IsCancelled {
		return nil, businessErrorf("payment %s is cancelled and cannot be transferred", p.ID)
	}

	transfers, err := listTransfers(ctx, tx, `payment_id = $1`, p.ID)
	if err != nil {
		return nil, err
	}
	available := AvailableBalance(p.Amount, transfers)
	if !available.IsPositive() {
		return nil, businessErrorf("payment %s has no balance available to transfer", p.ID)
	}
	amount := available
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount.GreaterThan(available) {
		return nil, businessErrorf("transfer of %s exceeds the available balance of %s",
			amount.StringFixed(2), available.StringFixed(2))
	}

	var origin uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT vendor_id FROM orders WHERE id = $1`, p.OrderID).Scan(&origin); err != nil {
		return nil, fmt.Errorf("failed to load vendor of order %s: %w", p.OrderID, err)
	}
	if _, err := getAgent(ctx, tx, in.DestAgentID); err != nil {
		return nil, err
	}
	if s.aliases.Canonical(origin) == s.aliases.Canonical(in.DestAgentID) {
		return nil, businessErrorf("destination agent is the same as the origin agent")
	}
	if _, err := getAgent(ctx, tx, in.ActorID); err != nil {
		return nil, err
	}

	t, err := scanTransfer(tx.QueryRow(ctx, `
		INSERT INTO payment_transfers (id, payment_id, origin_agent_id, dest_agent_id, amount,
			target_month, target_year, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+transferColumns,
		uuid.New(), p.ID, origin, in.DestAgentID, amount,
		in.TargetMonth, in.TargetYear, strings.TrimSpace(in.Reason), in.ActorID, s.now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"payment_id":  p.ID,
		"transfer_id": t.ID,
		"origin":      origin,
		"dest":        t.DestAgentID,
		"amount":      t.Amount.StringFixed(2),
	}).Info("payment transfer created")
	return t, nil
}

func (s *transferService) RevokeTransfer(ctx context.Context, transferID uuid.UUID, reason string, actorID uuid.UUID) (*PaymentTransfer, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErrorf("a revocation reason is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var paymentID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT payment_id FROM payment_transfers WHERE id = $1`, transferID).Scan(&paymentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("transfer", transferID)
		}
		return nil, fmt.Errorf("failed to load transfer %s: %w", transferID, err)
	}
	if _, err := lockPayment(ctx, tx, paymentID); err != nil {
		return nil, err
	}
	t, err := scanTransfer(tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM payment_transfers WHERE id = $1 FOR UPDATE`, transferID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock transfer %s: %w", transferID, err)
	}
	if t.IsRevoked {
		return nil, businessErrorf("transfer %s is already revoked", t.ID)
	}
	if _, err := getAgent(ctx, tx, actorID); err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := tx.Exec(ctx, `
		UPDATE payment_transfers
		SET is_revoked = true, revoked_at = $1, revoked_by = $2, revocation_reason = $3
		WHERE id = $4
	`, now, actorID, reason, t.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke transfer: %w", err)
	}
	t.IsRevoked, t.RevokedAt, t.RevokedBy, t.RevocationReason = true, &now, &actorID, reason

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer revocation: %w", err)
	}

	s.log.WithFields(logrus.Fields{"payment_id": t.PaymentID, "transfer_id": t.ID}).Info("payment transfer revoked")
	return t, nil
}

func (s *transferService) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentTransfer, error) {
	return listTransfers(ctx, s.pool, `payment_id = $1`, paymentID)
}

func (s *transferService) ListByOriginAgent(ctx context.Context, agentID uuid.UUID) ([]PaymentTransfer, error) {
	return listTransfers(ctx, s.pool, `origin_agent_id = $1`, agentID)
}

func (s *transferService) ListByDestAgent(ctx context.Context, agentID uuid.UUID) ([]PaymentTransfer, error) {
	return listTransfers(ctx, s.pool, `dest_agent_id = ANY($1)`, s.aliases.Members(agentID))
}

func (s *transferService) AvailableBalance(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	transfers, err := listTransfers(ctx, tx, `payment_id = $1`, p.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit balance read: %w", err)
	}
	return AvailableBalance(p.Amount, transfers), nil
}

func listTransfers(ctx context.Context, q pgxQuerier, where string, args ...any) ([]PaymentTransfer, error) {
	rows, err := q.Query(ctx, `SELECT `+transferColumns+` FROM payment_transfers WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	transfers := []PaymentTransfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}
