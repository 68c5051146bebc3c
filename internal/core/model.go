package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is the buyer an order is billed to. TotalPurchases is a running total
// incremented whenever orders are created for the customer.
type Customer struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Tag classifies products. The system tag separates items that must be invoiced apart.
type Tag struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsSystem bool      `json:"is_system"`
}

// Product is a catalog entry. A product with ParentProductID is a special variant
// that takes its stock from the parent and its price from itself when set.
type Product struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	TagID           *uuid.UUID      `json:"tag_id,omitempty"`
	ParentProductID *uuid.UUID      `json:"parent_product_id,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HasTag reports whether the product carries the given tag.
func (p *Product) HasTag(tag *Tag) bool {
	return tag != nil && p.TagID != nil && *p.TagID == tag.ID
}

// ResolvedProduct is the price and stock a product effectively trades at,
// computed once per read.
type ResolvedProduct struct {
	Product        Product         `json:"product"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	EffectiveStock int             `json:"effective_stock"`
	IsLinked       bool            `json:"is_linked"`
}

// ResolveProduct computes the effective values of p. parent is the linked parent
// product or nil. A linked product uses the parent's stock and falls back to the
// parent's price when its own is zero.
func ResolveProduct(p Product, parent *Product) ResolvedProduct {
	r := ResolvedProduct{
		Product:        p,
		EffectivePrice: p.Price,
		EffectiveStock: p.Stock,
	}
	if parent == nil {
		return r
	}
	r.IsLinked = true
	r.EffectiveStock = parent.Stock
	if p.Price.IsZero() {
		r.EffectivePrice = parent.Price
	}
	return r
}
