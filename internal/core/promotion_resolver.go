package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssortmentSelection is one chosen gift product and quantity.
type AssortmentSelection struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ResolvedPromotion is the set of lines one promotion instance contributes to an order.
// Lines carry no stock information yet; the order service applies stock per line.
type ResolvedPromotion struct {
	InstanceID uuid.UUID
	Lines      []LineItem
	// AwaitingAssortment is set when the gift portion is deferred until the buyer chooses it.
	AwaitingAssortment bool
}

// ValidateAssortment checks that selections add up to exactly the promotion's free quantity.
func ValidateAssortment(p *Promotion, selections []AssortmentSelection) error {
	sum := 0
	for _, s := range selections {
		if s.Quantity <= 0 {
			return validationErrorf("assortment quantities must be greater than zero")
		}
		sum += s.Quantity
	}
	if sum != p.FreeQuantity() {
		return validationErrorf("must select exactly %d assortment units, got %d", p.FreeQuantity(), sum)
	}
	return nil
}

// ResolvePromotion prices one instance of p. main is the resolved main product.
// selections, when non-empty, replace the default gift items of a buy-get-free promotion.
func ResolvePromotion(p *Promotion, main ResolvedProduct, selections []AssortmentSelection, now time.Time, instanceID uuid.UUID) (*ResolvedPromotion, error) {
	if !p.IsValid(now) {
		return nil, businessErrorf("promotion %q is not active", p.Name)
	}

	res := &ResolvedPromotion{InstanceID: instanceID}
	promoID := p.ID
	price := main.EffectivePrice

	switch p.Type {
	case PromotionPack:
		if len(selections) > 0 {
			return nil, validationErrorf("pack promotion %q does not accept an assortment", p.Name)
		}
		packPrice := p.EffectivePackPrice(price)
		res.Lines = append(res.Lines, LineItem{
			ProductID:           main.Product.ID,
			ProductName:         main.Product.Name,
			Quantity:            p.BuyQuantity,
			UnitPrice:           price,
			Subtotal:            packPrice,
			PromotionID:         &promoID,
			PromotionInstanceID: &instanceID,
			PromotionPackPrice:  &packPrice,
			IsPromotionItem:     true,
		})
		for _, g := range p.GiftItems {
			res.Lines = append(res.Lines, freeLine(g.ProductID, g.Quantity, &promoID, &instanceID))
		}

	case PromotionBuyGetFree:
		if len(selections) > 0 {
			if err := ValidateAssortment(p, selections); err != nil {
				return nil, err
			}
		}
		res.Lines = append(res.Lines, LineItem{
			ProductID:           main.Product.ID,
			ProductName:         main.Product.Name,
			Quantity:            p.BuyQuantity,
			UnitPrice:           price,
			Subtotal:            price.Mul(decimal.NewFromInt(int64(p.BuyQuantity))),
			PromotionID:         &promoID,
			PromotionInstanceID: &instanceID,
			IsPromotionItem:     true,
		})
		switch {
		case len(selections) > 0:
			for _, s := range selections {
				res.Lines = append(res.Lines, freeLine(s.ProductID, s.Quantity, &promoID, &instanceID))
			}
		case p.RequiresAssortmentSelection:
			res.AwaitingAssortment = true
		default:
			for _, g := range p.GiftItems {
				res.Lines = append(res.Lines, freeLine(g.ProductID, g.Quantity, &promoID, &instanceID))
			}
		}

	default:
		return nil, validationErrorf("unknown promotion type %q", p.Type)
	}
	return res, nil
}

func freeLine(productID uuid.UUID, qty int, promoID, instanceID *uuid.UUID) LineItem {
	return LineItem{
		ProductID:           productID,
		Quantity:            qty,
		UnitPrice:           decimal.Zero,
		Subtotal:            decimal.Zero,
		PromotionID:         promoID,
		PromotionInstanceID: instanceID,
		IsPromotionItem:     promoID != nil,
		IsFreeItem:          true,
	}
}
