package app

import (
	"github.com/shopspring/decimal"

	"sales-ledger/internal/core"
)

// OrdersResult is returned by CreateOrder. It holds two orders when the request was split by tag.
type OrdersResult struct {
	Orders []*core.Order `json:"orders"`
}

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order `json:"order"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

// DiscountResult is returned by ApplyDiscount and RevokeDiscount together with the
// order as recomputed.
type DiscountResult struct {
	Discount *core.OrderDiscount `json:"discount"`
	Order    *core.Order         `json:"order"`
}

type DiscountListResult struct {
	Discounts []core.OrderDiscount `json:"discounts"`
}

// PaymentResult is returned by payment mutations with the order's summary after the change.
type PaymentResult struct {
	Payment *core.Payment        `json:"payment"`
	Summary *core.PaymentSummary `json:"summary"`
}

type PaymentListResult struct {
	Payments []core.Payment       `json:"payments"`
	Summary  *core.PaymentSummary `json:"summary"`
}

// TransferResult is returned by transfer mutations with the payment's remaining balance.
type TransferResult struct {
	Transfer  *core.PaymentTransfer `json:"transfer"`
	Available decimal.Decimal       `json:"available"`
}

type TransferListResult struct {
	Transfers []core.PaymentTransfer `json:"transfers"`
}

type AvailableBalanceResult struct {
	PaymentID string          `json:"payment_id"`
	Available decimal.Decimal `json:"available"`
}

type PromotionResult struct {
	Promotion *core.Promotion `json:"promotion"`
}

type PromotionListResult struct {
	Promotions []core.Promotion `json:"promotions"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type StockMovementsResult struct {
	Movements []core.StockMovement `json:"movements"`
}
