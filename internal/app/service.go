package app

import (
	"context"

	"github.com/google/uuid"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It resolves the acting agent, serializes mutations per order or payment and
// delegates to the core ledgers. Implementations contain no presentation logic.
type ApplicationService interface {
	// CreateOrder creates a sales order, split in two when the items mix tagged and
	// untagged products.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrdersResult, error)

	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error)

	// ListOrders returns order headers, optionally filtered by status and vendor.
	ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error)

	// ChangeOrderStatus moves an order to a new status. The first completion assigns
	// the invoice number and feeds the vendor's sales goal.
	ChangeOrderStatus(ctx context.Context, req ChangeStatusRequest) (*OrderResult, error)

	// UpdateOrderItems replaces every line of an order that is not completed or cancelled.
	UpdateOrderItems(ctx context.Context, req UpdateOrderItemsRequest) (*OrderResult, error)

	// CompleteAssortment supplies the gift choice of a deferred buy-get-free promotion.
	CompleteAssortment(ctx context.Context, req CompleteAssortmentRequest) (*OrderResult, error)

	// AnnulOrder cancels an order without active payments and returns its stock.
	AnnulOrder(ctx context.Context, req AnnulOrderRequest) (*OrderResult, error)

	UpdateItemETA(ctx context.Context, req UpdateItemETARequest) (*OrderResult, error)

	// RemoveOrderItem drops one line from an order that is not completed or cancelled.
	RemoveOrderItem(ctx context.Context, req RemoveOrderItemRequest) (*OrderResult, error)

	// ApplyDiscount records a discount on a completed order and recomputes its totals.
	ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (*DiscountResult, error)

	RevokeDiscount(ctx context.Context, req RevokeDiscountRequest) (*DiscountResult, error)

	ListDiscounts(ctx context.Context, orderID uuid.UUID) (*DiscountListResult, error)

	// RegisterPayment adds a payment to a completed order within its pending balance.
	RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (*PaymentResult, error)

	CancelPayment(ctx context.Context, req CancelPaymentRequest) (*PaymentResult, error)

	RestorePayment(ctx context.Context, req RestorePaymentRequest) (*PaymentResult, error)

	// ListPayments returns all payments of an order, cancelled ones included, with the summary.
	ListPayments(ctx context.Context, orderID uuid.UUID) (*PaymentListResult, error)

	// CreateTransfer reassigns part of a payment's credit to another agent.
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*TransferResult, error)

	RevokeTransfer(ctx context.Context, req RevokeTransferRequest) (*TransferResult, error)

	ListTransfers(ctx context.Context, req ListTransfersRequest) (*TransferListResult, error)

	GetAvailableBalance(ctx context.Context, paymentID uuid.UUID) (*AvailableBalanceResult, error)

	// CreatePromotion stores a promotion definition. Only admins and owners may do so.
	CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*PromotionResult, error)

	GetPromotion(ctx context.Context, promotionID uuid.UUID) (*PromotionResult, error)

	ListPromotions(ctx context.Context, activeOnly bool) (*PromotionListResult, error)

	// UpdatePromotion replaces the definition and gift items; existing orders keep their prices.
	UpdatePromotion(ctx context.Context, req UpdatePromotionRequest) (*PromotionResult, error)

	ActivatePromotion(ctx context.Context, req ActivatePromotionRequest) (*PromotionResult, error)

	DeactivatePromotion(ctx context.Context, req DeactivatePromotionRequest) (*PromotionResult, error)

	ListProducts(ctx context.Context) (*ProductListResult, error)

	// ListStockMovements returns the stock audit trail of a product, newest first.
	ListStockMovements(ctx context.Context, productID uuid.UUID) (*StockMovementsResult, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
