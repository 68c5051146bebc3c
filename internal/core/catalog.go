package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog provides products with their effective price and stock.
type Catalog interface {
	// ResolveProductTx loads and row-locks a product (and its parent when linked) inside tx.
	ResolveProductTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*ResolvedProduct, error)
	GetProducts(ctx context.Context) ([]Product, error)
}

type catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog constructs a Catalog backed by the products table.
func NewCatalog(pool *pgxpool.Pool) Catalog {
	return &catalog{pool: pool}
}

const productColumns = `id, name, price, stock, tag_id, parent_product_id, is_active, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.TagID, &p.ParentProductID, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *catalog) ResolveProductTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*ResolvedProduct, error) {
	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	var parent *Product
	if p.ParentProductID != nil {
		parent, err = lockProduct(ctx, tx, *p.ParentProductID)
		if err != nil {
			return nil, err
		}
	}
	r := ResolveProduct(*p, parent)
	return &r, nil
}

func lockProduct(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product", id)
		}
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return p, nil
}

func (c *catalog) GetProducts(ctx context.Context) ([]Product, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active = true ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
