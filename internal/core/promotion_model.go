package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	// PromotionPack sells a fixed bundle at one bundle price.
	PromotionPack PromotionType = "PACK"
	// PromotionBuyGetFree grants an assortment of free units once BuyQuantity is bought.
	PromotionBuyGetFree PromotionType = "BUY_GET_FREE"
)

// GiftItem is a product granted by a promotion.
type GiftItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Promotion is a pricing rule an order can reference.
type Promotion struct {
	ID                          uuid.UUID        `json:"id"`
	Name                        string           `json:"name"`
	Description                 string           `json:"description"`
	Type                        PromotionType    `json:"type"`
	BuyQuantity                 int              `json:"buy_quantity"`
	PackPrice                   *decimal.Decimal `json:"pack_price,omitempty"`
	MainProductID               uuid.UUID        `json:"main_product_id"`
	GiftItems                   []GiftItem       `json:"gift_items"`
	RequiresAssortmentSelection bool             `json:"requires_assortment_selection"`
	AllowStackWithDiscounts     bool             `json:"allow_stack_with_discounts"`
	Active                      bool             `json:"active"`
	ValidFrom                   *time.Time       `json:"valid_from,omitempty"`
	ValidUntil                  *time.Time       `json:"valid_until,omitempty"`
	CreatedAt                   time.Time        `json:"created_at"`
}

// IsValid reports whether the promotion can be applied at now.
func (p *Promotion) IsValid(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && !now.Before(*p.ValidUntil) {
		return false
	}
	return true
}

// FreeQuantity is the number of assortment units granted: the quantity of the
// first configured gift item.
func (p *Promotion) FreeQuantity() int {
	if len(p.GiftItems) == 0 {
		return 0
	}
	return p.GiftItems[0].Quantity
}

// EffectivePackPrice is the configured pack price, or the main product price times
// the buy quantity when none is configured.
func (p *Promotion) EffectivePackPrice(mainPrice decimal.Decimal) decimal.Decimal {
	if p.PackPrice != nil {
		return *p.PackPrice
	}
	return mainPrice.Mul(decimal.NewFromInt(int64(p.BuyQuantity)))
}

// CreatePromotionInput carries a new promotion definition.
type CreatePromotionInput struct {
	Name                        string
	Description                 string
	Type                        PromotionType
	BuyQuantity                 int
	PackPrice                   *decimal.Decimal
	MainProductID               uuid.UUID
	GiftItems                   []GiftItem
	RequiresAssortmentSelection bool
	AllowStackWithDiscounts     bool
	ValidFrom                   *time.Time
	ValidUntil                  *time.Time
}

// Validate checks the definition before it is stored.
func (in CreatePromotionInput) Validate() error {
	if in.Name == "" {
		return validationErrorf("promotion name is required")
	}
	if in.Type != PromotionPack && in.Type != PromotionBuyGetFree {
		return validationErrorf("unknown promotion type %q", in.Type)
	}
	if in.BuyQuantity <= 0 {
		return validationErrorf("buy quantity must be greater than zero")
	}
	if in.PackPrice != nil && in.PackPrice.IsNegative() {
		return validationErrorf("pack price must not be negative")
	}
	if in.Type == PromotionBuyGetFree && len(in.GiftItems) == 0 {
		return validationErrorf("buy-get-free promotions need at least one gift item")
	}
	for _, g := range in.GiftItems {
		if g.Quantity <= 0 {
			return validationErrorf("gift item quantity must be greater than zero")
		}
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && !in.ValidFrom.Before(*in.ValidUntil) {
		return validationErrorf("valid_from must be before valid_until")
	}
	return nil
}
