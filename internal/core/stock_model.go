package core

import (
	"time"

	"github.com/google/uuid"
)

// StockMovement is one audited change of a product's stock. OwnerID is the row
// whose stock actually changed: the parent for linked products.
type StockMovement struct {
	ID          int64      `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Delta       int        `json:"delta"`
	StockBefore int        `json:"stock_before"`
	StockAfter  int        `json:"stock_after"`
	Reason      string     `json:"reason"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Stock movement reasons.
const (
	StockReasonOrderCreated  = "ORDER_CREATED"
	StockReasonOrderUpdated  = "ORDER_UPDATED"
	StockReasonOrderAnnulled = "ORDER_ANNULLED"
	StockReasonAssortment    = "ASSORTMENT_COMPLETED"
	StockReasonItemRemoved   = "ORDER_ITEM_REMOVED"
)
