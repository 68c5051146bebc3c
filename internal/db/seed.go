package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Fixed identifiers of the demo data written by Seed.
const (
	SeedOwnerID        = "00000000-0000-0000-0000-000000000001"
	SeedAdminID        = "00000000-0000-0000-0000-000000000002"
	SeedSellerID       = "00000000-0000-0000-0000-000000000003"
	SeedSellerTwinID   = "00000000-0000-0000-0000-000000000004"
	SeedOtherSellerID  = "00000000-0000-0000-0000-000000000005"
	SeedCustomerID     = "00000000-0000-0000-0000-000000000101"
	SeedSystemTagID    = "00000000-0000-0000-0000-000000000201"
	SeedShampooID      = "00000000-0000-0000-0000-000000000301"
	SeedConditionerID  = "00000000-0000-0000-0000-000000000302"
	SeedMaskID         = "00000000-0000-0000-0000-000000000303"
	SeedMaskRefillID   = "00000000-0000-0000-0000-000000000304"
	SeedServiceKitID   = "00000000-0000-0000-0000-000000000305"
	SeedPackPromoID    = "00000000-0000-0000-0000-000000000401"
	SeedGiftPromoID    = "00000000-0000-0000-0000-000000000402"
	SeedSystemTagName  = "S/R"
	SeedSellerUsername = "seller"
	SeedAdminUsername  = "admin"
	SeedOwnerUsername  = "owner"
)

var seedStatements = []struct {
	name string
	sql  string
}{
	{"agents", `
		INSERT INTO agents (id, username, role) VALUES
		  ('` + SeedOwnerID + `',       'owner',        'OWNER'),
		  ('` + SeedAdminID + `',       'admin',        'ADMIN'),
		  ('` + SeedSellerID + `',      'seller',       'SELLER'),
		  ('` + SeedSellerTwinID + `',  'seller-twin',  'SELLER'),
		  ('` + SeedOtherSellerID + `', 'other-seller', 'SELLER')
		ON CONFLICT (id) DO UPDATE
		  SET username = EXCLUDED.username,
		      role = EXCLUDED.role;`},
	{"customers", `
		INSERT INTO customers (id, name) VALUES
		  ('` + SeedCustomerID + `', 'Salon Aurora')
		ON CONFLICT (id) DO NOTHING;`},
	{"tags", `
		INSERT INTO tags (id, name, is_system) VALUES
		  ('` + SeedSystemTagID + `', '` + SeedSystemTagName + `', true)
		ON CONFLICT (id) DO NOTHING;`},
	{"products", `
		INSERT INTO products (id, name, price, stock, tag_id, parent_product_id) VALUES
		  ('` + SeedShampooID + `',     'Shampoo 1L',     100.00, 50, NULL, NULL),
		  ('` + SeedConditionerID + `', 'Conditioner 1L', 80.00,  30, NULL, NULL),
		  ('` + SeedMaskID + `',        'Hair Mask',      60.00,  20, NULL, NULL),
		  ('` + SeedMaskRefillID + `',  'Hair Mask Refill', 0.00, 0,  NULL, '` + SeedMaskID + `'),
		  ('` + SeedServiceKitID + `',  'Service Kit',    200.00, 10, '` + SeedSystemTagID + `', NULL)
		ON CONFLICT (id) DO UPDATE
		  SET name = EXCLUDED.name,
		      price = EXCLUDED.price,
		      stock = EXCLUDED.stock,
		      tag_id = EXCLUDED.tag_id,
		      parent_product_id = EXCLUDED.parent_product_id;`},
	{"promotions", `
		INSERT INTO promotions (id, name, type, buy_quantity, pack_price, main_product_id, requires_assortment_selection) VALUES
		  ('` + SeedPackPromoID + `', '3 shampoos for 250', 'PACK',         3, 250.00, '` + SeedShampooID + `', false),
		  ('` + SeedGiftPromoID + `', 'Buy 2 get a mask',   'BUY_GET_FREE', 2, NULL,   '` + SeedConditionerID + `', false)
		ON CONFLICT (id) DO NOTHING;`},
	{"promotion gifts", `
		INSERT INTO promotion_gift_items (promotion_id, position, product_id, quantity) VALUES
		  ('` + SeedGiftPromoID + `', 0, '` + SeedMaskID + `', 1)
		ON CONFLICT (promotion_id, position) DO NOTHING;`},
}

// Seed writes the demo agents, catalog and promotions in one transaction. It is idempotent.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range seedStatements {
		if _, err := tx.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to seed %s: %w", stmt.name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}
