package core

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeOrderTotal returns the raw total of items. A promotion line carrying both an
// instance id and a pack price contributes the pack price once per instance; every
// other line contributes its subtotal.
func ComputeOrderTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[uuid.UUID]bool)
	for _, it := range items {
		if it.IsPromotionItem && it.PromotionInstanceID != nil && it.PromotionPackPrice != nil {
			if !seen[*it.PromotionInstanceID] {
				total = total.Add(*it.PromotionPackPrice)
				seen[*it.PromotionInstanceID] = true
			}
			continue
		}
		total = total.Add(it.Subtotal)
	}
	return total
}

// SplitByTag partitions items into those whose product lacks the tag and those that
// carry it. products must contain every referenced product. A nil tag keeps every
// item in the untagged group.
func SplitByTag(items []OrderItemInput, products map[uuid.UUID]Product, tag *Tag) (untagged, tagged []OrderItemInput) {
	for _, it := range items {
		p, ok := products[it.ProductID]
		if ok && p.HasTag(tag) {
			tagged = append(tagged, it)
			continue
		}
		untagged = append(untagged, it)
	}
	return untagged, tagged
}
