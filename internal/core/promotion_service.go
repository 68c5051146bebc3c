package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PromotionService stores promotion definitions.
type PromotionService interface {
	CreatePromotion(ctx context.Context, in CreatePromotionInput) (*Promotion, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (*Promotion, error)
	// ListPromotions returns all promotions, or only those valid now when activeOnly is set.
	ListPromotions(ctx context.Context, activeOnly bool) ([]Promotion, error)
	// UpdatePromotion replaces the definition and gift items. Orders keep the prices
	// they were created with.
	UpdatePromotion(ctx context.Context, id uuid.UUID, in CreatePromotionInput) (*Promotion, error)
	ActivatePromotion(ctx context.Context, id uuid.UUID) (*Promotion, error)
	DeactivatePromotion(ctx context.Context, id uuid.UUID) (*Promotion, error)
}

type promotionService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPromotionService(pool *pgxpool.Pool, now func() time.Time) PromotionService {
	if now == nil {
		now = time.Now
	}
	return &promotionService{pool: pool, now: now}
}

const promotionColumns = `id, name, description, type, buy_quantity, pack_price, main_product_id,
	requires_assortment_selection, allow_stack_with_discounts, active, valid_from, valid_until, created_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Type, &p.BuyQuantity, &p.PackPrice, &p.MainProductID,
		&p.RequiresAssortmentSelection, &p.AllowStackWithDiscounts, &p.Active, &p.ValidFrom, &p.ValidUntil, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *promotionService) CreatePromotion(ctx context.Context, in CreatePromotionInput) (*Promotion, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requirePromotionProducts(ctx, tx, in); err != nil {
		return nil, err
	}

	p, err := scanPromotion(tx.QueryRow(ctx, `
		INSERT INTO promotions (id, name, description, type, buy_quantity, pack_price, main_product_id,
			requires_assortment_selection, allow_stack_with_discounts, active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, $10, $11)
		RETURNING `+promotionColumns,
		uuid.New(), in.Name, in.Description, in.Type, in.BuyQuantity, in.PackPrice, in.MainProductID,
		in.RequiresAssortmentSelection, in.AllowStackWithDiscounts, in.ValidFrom, in.ValidUntil,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	if err := insertGiftItemsTx(ctx, tx, p.ID, in.GiftItems); err != nil {
		return nil, err
	}
	p.GiftItems = in.GiftItems

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}
	return p, nil
}

func (s *promotionService) UpdatePromotion(ctx context.Context, id uuid.UUID, in CreatePromotionInput) (*Promotion, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requirePromotionProducts(ctx, tx, in); err != nil {
		return nil, err
	}

	p, err := scanPromotion(tx.QueryRow(ctx, `
		UPDATE promotions
		SET name = $2, description = $3, type = $4, buy_quantity = $5, pack_price = $6, main_product_id = $7,
			requires_assortment_selection = $8, allow_stack_with_discounts = $9, valid_from = $10, valid_until = $11
		WHERE id = $1
		RETURNING `+promotionColumns,
		id, in.Name, in.Description, in.Type, in.BuyQuantity, in.PackPrice, in.MainProductID,
		in.RequiresAssortmentSelection, in.AllowStackWithDiscounts, in.ValidFrom, in.ValidUntil,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("promotion", id)
		}
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM promotion_gift_items WHERE promotion_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to clear gift items: %w", err)
	}
	if err := insertGiftItemsTx(ctx, tx, id, in.GiftItems); err != nil {
		return nil, err
	}
	p.GiftItems = in.GiftItems

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit promotion update: %w", err)
	}
	return p, nil
}

func requirePromotionProducts(ctx context.Context, tx pgx.Tx, in CreatePromotionInput) error {
	if err := requireProduct(ctx, tx, in.MainProductID); err != nil {
		return err
	}
	for _, g := range in.GiftItems {
		if err := requireProduct(ctx, tx, g.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func insertGiftItemsTx(ctx context.Context, tx pgx.Tx, promotionID uuid.UUID, gifts []GiftItem) error {
	for i, g := range gifts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO promotion_gift_items (promotion_id, position, product_id, quantity)
			VALUES ($1, $2, $3, $4)
		`, promotionID, i+1, g.ProductID, g.Quantity); err != nil {
			return fmt.Errorf("failed to insert gift item %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *promotionService) GetPromotion(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return getPromotion(ctx, s.pool, id, false)
}

func (s *promotionService) ListPromotions(ctx context.Context, activeOnly bool) ([]Promotion, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	var promos []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promos = append(promos, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read promotions: %w", err)
	}

	now := s.now()
	out := promos[:0]
	for i := range promos {
		if activeOnly && !promos[i].IsValid(now) {
			continue
		}
		gifts, err := loadGiftItems(ctx, s.pool, promos[i].ID)
		if err != nil {
			return nil, err
		}
		promos[i].GiftItems = gifts
		out = append(out, promos[i])
	}
	return out, nil
}

func (s *promotionService) ActivatePromotion(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return s.setActive(ctx, id, true)
}

func (s *promotionService) DeactivatePromotion(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return s.setActive(ctx, id, false)
}

func (s *promotionService) setActive(ctx context.Context, id uuid.UUID, active bool) (*Promotion, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE promotions SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return nil, fmt.Errorf("failed to set promotion %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("promotion", id)
	}
	return getPromotion(ctx, s.pool, id, false)
}

// getPromotion loads a promotion with its gift items. With forShare the row is
// share-locked so it cannot change while an order references it.
func getPromotion(ctx context.Context, q pgxQuerier, id uuid.UUID, forShare bool) (*Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	if forShare {
		query += ` FOR SHARE`
	}
	p, err := scanPromotion(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("promotion", id)
		}
		return nil, fmt.Errorf("failed to load promotion %s: %w", id, err)
	}
	p.GiftItems, err = loadGiftItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func loadGiftItems(ctx context.Context, q pgxQuerier, promotionID uuid.UUID) ([]GiftItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity
		FROM promotion_gift_items
		WHERE promotion_id = $1
		ORDER BY position
	`, promotionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gift items: %w", err)
	}
	defer rows.Close()

	var gifts []GiftItem
	for rows.Next() {
		var g GiftItem
		if err := rows.Scan(&g.ProductID, &g.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan gift item: %w", err)
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

func requireProduct(ctx context.Context, q pgxQuerier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product %s: %w", id, err)
	}
	if !exists {
		return notFound("product", id)
	}
	return nil
}
