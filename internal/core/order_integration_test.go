package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-ledger/internal/core"
)

func TestOrderService_CreateDecrementsStock(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID:    sellerID,
		CustomerID: &customerID,
		Items: []core.OrderItemInput{
			{ProductID: shampooID, Quantity: 2},
			{ProductID: conditionerID, Quantity: 1},
		},
		Notes: "walk-in",
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, core.OrderStatusPending, o.Status)
	assert.Equal(t, core.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, sellerID, o.VendorID)
	assert.True(t, dec("280.00").Equal(o.Total), "total %s", o.Total)
	assert.Nil(t, o.InvoiceNumber)
	assert.Equal(t, 48, env.stockOf(t, shampooID))
	assert.Equal(t, 29, env.stockOf(t, conditionerID))

	var purchases string
	require.NoError(t, env.pool.QueryRow(env.ctx, `SELECT total_purchases::text FROM customers WHERE id = $1`, customerID).Scan(&purchases))
	assert.Equal(t, "280.00", purchases)

	movements, err := env.stock.Movements(env.ctx, shampooID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -2, movements[0].Delta)
	assert.Equal(t, 50, movements[0].StockBefore)
	assert.Equal(t, 48, movements[0].StockAfter)
	assert.Equal(t, core.StockReasonOrderCreated, movements[0].Reason)

	loaded, err := env.orders.GetOrder(env.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 2)
	assert.Equal(t, "seller", loaded.VendorUsername)

	assert.Len(t, env.notifier.ofType(core.EventNewOrder), 1)
}

func TestOrderService_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items:   []core.OrderItemInput{{ProductID: shampooID, Quantity: 60}},
	})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err))
	assert.Equal(t, 50, env.stockOf(t, shampooID), "failed order must not touch stock")

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items:   []core.OrderItemInput{{ProductID: shampooID, Quantity: 60, AllowOutOfStock: true}},
	})
	require.NoError(t, err)
	line := orders[0].Items[0]
	assert.True(t, line.OutOfStock)
	assert.Equal(t, 0, line.StockDeducted)
	assert.Equal(t, 50, env.stockOf(t, shampooID))
}

func TestOrderService_RemoveOrderItem(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID:      sellerID,
		PromotionIDs: []uuid.UUID{packPromoID, giftPromoID},
	})
	require.NoError(t, err)
	o := orders[0]
	require.Len(t, o.Items, 3)

	lineFor := func(o *core.Order, productID uuid.UUID) uuid.UUID {
		t.Helper()
		for _, it := range o.Items {
			if it.ProductID == productID {
				return it.ID
			}
		}
		t.Fatalf("no line for product %s", productID)
		return uuid.Nil
	}

	// a free line goes alone and its stock comes back
	o, err = env.orders.RemoveOrderItem(env.ctx, o.ID, lineFor(o, maskID))
	require.NoError(t, err)
	assert.Len(t, o.Items, 2)
	assert.True(t, dec("410.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 20, env.stockOf(t, maskID))

	movements, err := env.stock.Movements(env.ctx, maskID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, 1, movements[0].Delta, "newest movement first")
	assert.Equal(t, core.StockReasonItemRemoved, movements[0].Reason)

	// the paying line of a promotion takes its instance with it
	o, err = env.orders.RemoveOrderItem(env.ctx, o.ID, lineFor(o, conditionerID))
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.True(t, dec("250.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 30, env.stockOf(t, conditionerID))
	assert.Equal(t, 47, env.stockOf(t, shampooID))

	reloaded, err := env.orders.GetOrder(env.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Items, 1)
	assert.True(t, dec("250.00").Equal(reloaded.Total))
	assert.Len(t, env.notifier.ofType(core.EventInventoryUpdate), 2)

	_, err = env.orders.RemoveOrderItem(env.ctx, o.ID, lineFor(o, shampooID))
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err), "last line cannot be removed")
	assert.Equal(t, 47, env.stockOf(t, shampooID))

	_, err = env.orders.RemoveOrderItem(env.ctx, o.ID, uuid.New())
	assert.True(t, core.IsNotFound(err))

	done := env.completedOrder(t, 1)
	_, err = env.orders.RemoveOrderItem(env.ctx, done.ID, done.Items[0].ID)
	assert.True(t, core.IsBusiness(err), "completed orders are frozen")
}

func TestOrderService_SplitsSystemTaggedItems(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items: []core.OrderItemInput{
			{ProductID: serviceKitID, Quantity: 1},
			{ProductID: shampooID, Quantity: 1},
		},
		Notes: "mixed",
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, shampooID, orders[0].Items[0].ProductID, "untagged order comes first")
	assert.Equal(t, "mixed", orders[0].Notes)
	assert.Equal(t, serviceKitID, orders[1].Items[0].ProductID)
	assert.Contains(t, orders[1].Notes, "[S/R]")
	assert.True(t, dec("200.00").Equal(orders[1].Total))
	assert.True(t, dec("100.00").Equal(orders[0].Total))
	assert.True(t, dec("300.00").Equal(orders[0].Total.Add(orders[1].Total)), "split keeps the combined total")
}

func TestOrderService_PromotionPricing(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID:      sellerID,
		PromotionIDs: []uuid.UUID{packPromoID, giftPromoID},
	})
	require.NoError(t, err)
	o := orders[0]

	// pack 250 + buy-2 conditioners 160; the gifted mask is free
	assert.True(t, dec("410.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 47, env.stockOf(t, shampooID))
	assert.Equal(t, 28, env.stockOf(t, conditionerID))
	assert.Equal(t, 19, env.stockOf(t, maskID))

	var free int
	for _, it := range o.Items {
		if it.IsFreeItem {
			free++
			assert.True(t, it.Subtotal.IsZero())
		}
	}
	assert.Equal(t, 1, free)
}

func TestOrderService_DeferredAssortment(t *testing.T) {
	env := newTestEnv(t)

	promo, err := env.promotions.CreatePromotion(env.ctx, core.CreatePromotionInput{
		Name: "Buy 3 pick 2", Type: core.PromotionBuyGetFree, BuyQuantity: 3, MainProductID: conditionerID,
		GiftItems:                   []core.GiftItem{{ProductID: maskID, Quantity: 2}},
		RequiresAssortmentSelection: true,
	})
	require.NoError(t, err)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{ActorID: sellerID, PromotionIDs: []uuid.UUID{promo.ID}})
	require.NoError(t, err)
	o := orders[0]
	assert.Equal(t, core.OrderStatusPendingPromotionCompletion, o.Status)
	assert.Len(t, o.Items, 1)

	_, err = env.orders.CompleteAssortment(env.ctx, o.ID, promo.ID, []core.AssortmentSelection{{ProductID: maskID, Quantity: 1}})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	o, err = env.orders.CompleteAssortment(env.ctx, o.ID, promo.ID, []core.AssortmentSelection{
		{ProductID: maskID, Quantity: 1},
		{ProductID: shampooID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusConfirmed, o.Status)
	assert.Len(t, o.Items, 3)
	assert.True(t, dec("240.00").Equal(o.Total))
	assert.Equal(t, 19, env.stockOf(t, maskID))
	assert.Equal(t, 49, env.stockOf(t, shampooID))

	_, err = env.orders.CompleteAssortment(env.ctx, o.ID, promo.ID, []core.AssortmentSelection{{ProductID: maskID, Quantity: 2}})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err))
}

func TestOrderService_LinkedProductUsesParentStock(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items:   []core.OrderItemInput{{ProductID: maskRefillID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, dec("180.00").Equal(orders[0].Total), "refill falls back to the parent price")
	assert.Equal(t, 17, env.stockOf(t, maskID))
	assert.Equal(t, 0, env.stockOf(t, maskRefillID))
}

func TestOrderService_CompletionAssignsInvoiceOnce(t *testing.T) {
	env := newTestEnv(t)

	first := env.completedOrder(t, 2)
	require.NotNil(t, first.InvoiceNumber)
	assert.Equal(t, int64(1), *first.InvoiceNumber)
	assert.NotNil(t, first.CompletedAt)

	second := env.completedOrder(t, 1)
	require.NotNil(t, second.InvoiceNumber)
	assert.Equal(t, int64(2), *second.InvoiceNumber)

	// Reopen and complete again: the number and goal credit are not repeated.
	_, err := env.orders.ChangeStatus(env.ctx, first.ID, core.OrderStatusConfirmed)
	require.NoError(t, err)
	again, err := env.orders.ChangeStatus(env.ctx, first.ID, core.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *again.InvoiceNumber)

	now := time.Now()
	var progress string
	require.NoError(t, env.pool.QueryRow(env.ctx, `
		SELECT current_amount::text FROM sale_goals WHERE agent_id = $1 AND month = $2 AND year = $3
	`, sellerID, int(now.Month()), now.Year()).Scan(&progress))
	assert.Equal(t, "300.00", progress)

	assert.Len(t, env.notifier.ofType(core.EventOrderCompleted), 2)

	same, err := env.orders.ChangeStatus(env.ctx, second.ID, "completado")
	require.NoError(t, err)
	assert.Equal(t, second.Version, same.Version, "setting the current status is a no-op")
}

func TestOrderService_UpdateItemsReturnsStock(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, 5)
	assert.Equal(t, 45, env.stockOf(t, shampooID))

	o, err := env.orders.UpdateOrderItems(env.ctx, o.ID, []core.OrderItemInput{{ProductID: conditionerID, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 50, env.stockOf(t, shampooID))
	assert.Equal(t, 28, env.stockOf(t, conditionerID))
	assert.True(t, dec("160.00").Equal(o.Total))
	require.Len(t, o.Items, 1)

	_, err = env.orders.UpdateOrderItems(env.ctx, o.ID, []core.OrderItemInput{{ProductID: conditionerID, Quantity: 500}})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err))
	assert.Equal(t, 28, env.stockOf(t, conditionerID), "rejected update rolls back the returned stock too")

	_, err = env.orders.ChangeStatus(env.ctx, o.ID, core.OrderStatusCompleted)
	require.NoError(t, err)
	_, err = env.orders.UpdateOrderItems(env.ctx, o.ID, []core.OrderItemInput{{ProductID: shampooID, Quantity: 1}})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err))
}

func TestOrderService_AnnulRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, 4)

	_, err := env.orders.AnnulOrder(env.ctx, o.ID, "  ")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	o, err = env.orders.AnnulOrder(env.ctx, o.ID, "customer changed their mind")
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusCancelled, o.Status)
	assert.Equal(t, "customer changed their mind", o.CancellationReason)
	assert.Equal(t, 50, env.stockOf(t, shampooID))

	_, err = env.orders.AnnulOrder(env.ctx, o.ID, "again")
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err))
	assert.Equal(t, 50, env.stockOf(t, shampooID), "stock is only returned once")
}

func TestOrderService_OwnerOverride(t *testing.T) {
	env := newTestEnv(t)
	items := []core.OrderItemInput{{ProductID: shampooID, Quantity: 1}}

	_, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{ActorID: sellerID, AgentOverrideID: &otherSellerID, Items: items})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err), "sellers cannot sell on behalf of others")

	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{ActorID: adminID, AgentOverrideID: &otherSellerID, Items: items})
	require.NoError(t, err)
	assert.Equal(t, otherSellerID, orders[0].VendorID)

	_, err = env.orders.CreateOrder(env.ctx, core.CreateOrderInput{ActorID: adminID, Items: items})
	require.Error(t, err)
	assert.True(t, core.IsBusiness(err), "admins do not own orders")

	unknown := uuid.New()
	_, err = env.orders.CreateOrder(env.ctx, core.CreateOrderInput{ActorID: ownerID, AgentOverrideID: &unknown, Items: items})
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestOrderService_UpdateItemETA(t *testing.T) {
	env := newTestEnv(t)
	orders, err := env.orders.CreateOrder(env.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items:   []core.OrderItemInput{{ProductID: maskID, Quantity: 40, AllowOutOfStock: true}},
	})
	require.NoError(t, err)
	o := orders[0]

	eta := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	o, err = env.orders.UpdateItemETA(env.ctx, o.ID, o.Items[0].ID, &eta, "next container")
	require.NoError(t, err)
	require.NotNil(t, o.Items[0].EstimatedArrivalDate)
	assert.Equal(t, "2026-11-20", o.Items[0].EstimatedArrivalDate.Format(time.DateOnly))
	assert.Equal(t, "next container", o.Items[0].EstimatedArrivalNote)

	_, err = env.orders.UpdateItemETA(env.ctx, o.ID, uuid.New(), &eta, "")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestOrderService_ListOrders(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, 1)
	env.completedOrder(t, 1)

	all, err := env.orders.ListOrders(env.ctx, core.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed := core.OrderStatusCompleted
	onlyCompleted, err := env.orders.ListOrders(env.ctx, core.OrderFilter{Status: &completed})
	require.NoError(t, err)
	require.Len(t, onlyCompleted, 1)
	assert.Equal(t, core.OrderStatusCompleted, onlyCompleted[0].Status)

	none, err := env.orders.ListOrders(env.ctx, core.OrderFilter{VendorID: &otherSellerID})
	require.NoError(t, err)
	assert.Empty(t, none)
}
