package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order:
//
//	PENDING ─┬─> CONFIRMED ──> COMPLETED
//	         └─> PENDING_PROMOTION_COMPLETION ──> CONFIRMED
//	any ──> CANCELLED
type OrderStatus string

const (
	OrderStatusPending                    OrderStatus = "PENDING"
	OrderStatusPendingPromotionCompletion OrderStatus = "PENDING_PROMOTION_COMPLETION"
	OrderStatusConfirmed                  OrderStatus = "CONFIRMED"
	OrderStatusCompleted                  OrderStatus = "COMPLETED"
	OrderStatusCancelled                  OrderStatus = "CANCELLED"
)

var orderStatusAliases = map[string]OrderStatus{
	"PENDING":                      OrderStatusPending,
	"PENDIENTE":                    OrderStatusPending,
	"PENDING_PROMOTION_COMPLETION": OrderStatusPendingPromotionCompletion,
	"CONFIRMED":                    OrderStatusConfirmed,
	"CONFIRMADO":                   OrderStatusConfirmed,
	"COMPLETED":                    OrderStatusCompleted,
	"COMPLETADO":                   OrderStatusCompleted,
	"CANCELLED":                    OrderStatusCancelled,
	"CANCELADO":                    OrderStatusCancelled,
}

// ParseOrderStatus accepts the canonical names and their Spanish aliases, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st, ok := orderStatusAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", validationErrorf("unknown order status %q", s)
	}
	return st, nil
}

// AllowsItemEdits reports whether the item list may still be replaced.
func (s OrderStatus) AllowsItemEdits() bool {
	return s != OrderStatusCompleted && s != OrderStatusCancelled
}

// PaymentStatus is derived from active payments against the effective total.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Order is the sales order aggregate.
type Order struct {
	ID                 uuid.UUID        `json:"id"`
	VendorID           uuid.UUID        `json:"vendor_id"`
	VendorUsername     string           `json:"vendor_username"` // joined from agents
	CustomerID         *uuid.UUID       `json:"customer_id,omitempty"`
	Status             OrderStatus      `json:"status"`
	Total              decimal.Decimal  `json:"total"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	DiscountedTotal    *decimal.Decimal `json:"discounted_total,omitempty"`
	PaymentStatus      PaymentStatus    `json:"payment_status"`
	InvoiceNumber      *int64           `json:"invoice_number,omitempty"`
	Notes              string           `json:"notes"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	Version            int              `json:"version"`
	Items              []LineItem       `json:"items"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
}

// EffectiveTotal is the discounted total when one has been derived, else the raw total.
func (o *Order) EffectiveTotal() decimal.Decimal {
	if o.DiscountedTotal != nil {
		return *o.DiscountedTotal
	}
	return o.Total
}

// RecalculateTotal recomputes the raw total from the current items.
func (o *Order) RecalculateTotal() {
	o.Total = ComputeOrderTotal(o.Items)
}

// LineItem is one line of an order. UnitPrice is a snapshot taken when the line was added.
type LineItem struct {
	ID                   uuid.UUID        `json:"id"`
	OrderID              uuid.UUID        `json:"order_id"`
	Position             int              `json:"position"`
	ProductID            uuid.UUID        `json:"product_id"`
	ProductName          string           `json:"product_name"` // joined from products
	Quantity             int              `json:"quantity"`
	UnitPrice            decimal.Decimal  `json:"unit_price"`
	Subtotal             decimal.Decimal  `json:"subtotal"`
	OutOfStock           bool             `json:"out_of_stock"`
	StockDeducted        int              `json:"stock_deducted"`
	EstimatedArrivalDate *time.Time       `json:"estimated_arrival_date,omitempty"`
	EstimatedArrivalNote string           `json:"estimated_arrival_note,omitempty"`
	PromotionID          *uuid.UUID       `json:"promotion_id,omitempty"`
	PromotionInstanceID  *uuid.UUID       `json:"promotion_instance_id,omitempty"`
	PromotionPackPrice   *decimal.Decimal `json:"promotion_pack_price,omitempty"`
	IsPromotionItem      bool             `json:"is_promotion_item"`
	IsFreeItem           bool             `json:"is_free_item"`
}

// OrderItemInput is one requested product line.
type OrderItemInput struct {
	ProductID       uuid.UUID
	Quantity        int
	AllowOutOfStock bool
}

// GiftItemInput is a free line. With PromotionID set it is an assortment selection
// for that promotion; without it the product is given away on its own.
type GiftItemInput struct {
	PromotionID *uuid.UUID
	ProductID   uuid.UUID
	Quantity    int
}

// CreateOrderInput carries a sale request.
type CreateOrderInput struct {
	ActorID         uuid.UUID
	AgentOverrideID *uuid.UUID
	CustomerID      *uuid.UUID
	Items           []OrderItemInput
	GiftItems       []GiftItemInput
	PromotionIDs    []uuid.UUID
	Notes           string
}
