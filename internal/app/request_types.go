package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Every mutating request names the acting agent by username. Adapters fill Actor from
// the authenticated identity; it is never read from a request body.

// CreateOrderRequest is the input for creating one order, or two when tags are mixed.
type CreateOrderRequest struct {
	Actor           string           `json:"-" validate:"required"`
	AgentOverrideID *uuid.UUID       `json:"agent_override_id,omitempty" jsonschema_description:"Seller to create the order for; only admins and owners may set it"`
	CustomerID      *uuid.UUID       `json:"customer_id,omitempty"`
	Items           []OrderLineInput `json:"items" validate:"dive"`
	GiftItems       []GiftLineInput  `json:"gift_items,omitempty" validate:"dive"`
	PromotionIDs    []uuid.UUID      `json:"promotion_ids,omitempty"`
	Notes           string           `json:"notes,omitempty" validate:"max=2000"`
}

// OrderLineInput is a single requested product line.
type OrderLineInput struct {
	ProductID       uuid.UUID `json:"product_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"gt=0"`
	AllowOutOfStock bool      `json:"allow_out_of_stock,omitempty" jsonschema_description:"Accept the line without taking stock when stock is insufficient"`
}

// GiftLineInput is a free line, either an assortment pick for a promotion or a standalone gift.
type GiftLineInput struct {
	PromotionID *uuid.UUID `json:"promotion_id,omitempty"`
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
}

// ListOrdersRequest filters ListOrders. Status accepts aliases.
type ListOrdersRequest struct {
	Status   string     `json:"status,omitempty"`
	VendorID *uuid.UUID `json:"vendor_id,omitempty"`
}

type ChangeStatusRequest struct {
	Actor   string    `json:"-" validate:"required"`
	OrderID uuid.UUID `json:"-"`
	Status  string    `json:"status" validate:"required"`
}

type UpdateOrderItemsRequest struct {
	Actor   string           `json:"-" validate:"required"`
	OrderID uuid.UUID        `json:"-"`
	Items   []OrderLineInput `json:"items" validate:"required,min=1,dive"`
}

type CompleteAssortmentRequest struct {
	Actor       string                `json:"-" validate:"required"`
	OrderID     uuid.UUID             `json:"-"`
	PromotionID uuid.UUID             `json:"promotion_id" validate:"required"`
	Selections  []AssortmentPickInput `json:"selections" validate:"required,min=1,dive"`
}

type AssortmentPickInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

type AnnulOrderRequest struct {
	Actor   string    `json:"-" validate:"required"`
	OrderID uuid.UUID `json:"-"`
	Reason  string    `json:"reason" validate:"required"`
}

type UpdateItemETARequest struct {
	Actor                string     `json:"-" validate:"required"`
	OrderID              uuid.UUID  `json:"-"`
	ItemID               uuid.UUID  `json:"-"`
	EstimatedArrivalDate *time.Time `json:"estimated_arrival_date,omitempty"`
	EstimatedArrivalNote string     `json:"estimated_arrival_note,omitempty" validate:"max=500"`
}

type RemoveOrderItemRequest struct {
	Actor   string    `json:"-" validate:"required"`
	OrderID uuid.UUID `json:"-"`
	ItemID  uuid.UUID `json:"-"`
}

// ApplyDiscountRequest applies a discount. Preset types ignore Percentage.
type ApplyDiscountRequest struct {
	Actor      string           `json:"-" validate:"required"`
	OrderID    uuid.UUID        `json:"-"`
	Type       string           `json:"type" validate:"required,oneof=ADMIN_10 ADMIN_12 ADMIN_15 ADMIN_CUSTOM OWNER_ADDITIONAL"`
	Percentage *decimal.Decimal `json:"percentage,omitempty" jsonschema_description:"Required for ADMIN_CUSTOM and OWNER_ADDITIONAL"`
	Reason     string           `json:"reason,omitempty"`
}

type RevokeDiscountRequest struct {
	Actor      string    `json:"-" validate:"required"`
	DiscountID uuid.UUID `json:"-"`
}

type RegisterPaymentRequest struct {
	Actor             string           `json:"-" validate:"required"`
	OrderID           uuid.UUID        `json:"-"`
	Amount            decimal.Decimal  `json:"amount"`
	Method            string           `json:"method" validate:"required,oneof=CASH TRANSFER CHECK CARD CREDIT OTHER"`
	ActualPaymentDate *time.Time       `json:"actual_payment_date,omitempty"`
	WithinDeadline    *bool            `json:"within_deadline,omitempty"`
	DiscountApplied   *decimal.Decimal `json:"discount_applied,omitempty"`
	Notes             string           `json:"notes,omitempty" validate:"max=2000"`
}

type CancelPaymentRequest struct {
	Actor     string    `json:"-" validate:"required"`
	PaymentID uuid.UUID `json:"-"`
	Reason    string    `json:"reason,omitempty"`
}

type RestorePaymentRequest struct {
	Actor     string    `json:"-" validate:"required"`
	PaymentID uuid.UUID `json:"-"`
}

// CreateTransferRequest moves payment credit to another agent. A missing amount transfers
// the whole available balance.
type CreateTransferRequest struct {
	Actor       string           `json:"-" validate:"required"`
	PaymentID   uuid.UUID        `json:"-"`
	DestAgentID uuid.UUID        `json:"dest_agent_id" validate:"required"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	TargetMonth int              `json:"target_month"`
	TargetYear  int              `json:"target_year"`
	Reason      string           `json:"reason,omitempty"`
}

type RevokeTransferRequest struct {
	Actor      string    `json:"-" validate:"required"`
	TransferID uuid.UUID `json:"-"`
	Reason     string    `json:"reason"`
}

// ListTransfersRequest selects transfers by exactly one of its fields.
type ListTransfersRequest struct {
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	OriginAgentID *uuid.UUID `json:"origin_agent_id,omitempty"`
	DestAgentID   *uuid.UUID `json:"dest_agent_id,omitempty"`
}

type CreatePromotionRequest struct {
	Actor                       string           `json:"-" validate:"required"`
	Name                        string           `json:"name" validate:"required,max=200"`
	Description                 string           `json:"description,omitempty"`
	Type                        string           `json:"type" validate:"required,oneof=PACK BUY_GET_FREE"`
	BuyQuantity                 int              `json:"buy_quantity" validate:"gt=0"`
	PackPrice                   *decimal.Decimal `json:"pack_price,omitempty"`
	MainProductID               uuid.UUID        `json:"main_product_id" validate:"required"`
	GiftItems                   []PromotionGift  `json:"gift_items,omitempty" validate:"dive"`
	RequiresAssortmentSelection bool             `json:"requires_assortment_selection,omitempty"`
	AllowStackWithDiscounts     bool             `json:"allow_stack_with_discounts,omitempty"`
	ValidFrom                   *time.Time       `json:"valid_from,omitempty"`
	ValidUntil                  *time.Time       `json:"valid_until,omitempty"`
}

// PromotionGift is a default gift of a promotion. The first one sets the free quantity.
type PromotionGift struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// UpdatePromotionRequest replaces a promotion definition. The body matches create.
type UpdatePromotionRequest struct {
	CreatePromotionRequest
	PromotionID uuid.UUID `json:"-"`
}

type ActivatePromotionRequest struct {
	Actor       string    `json:"-" validate:"required"`
	PromotionID uuid.UUID `json:"-"`
}

type DeactivatePromotionRequest struct {
	Actor       string    `json:"-" validate:"required"`
	PromotionID uuid.UUID `json:"-"`
}
