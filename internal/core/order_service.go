package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderService manages the order aggregate: creation with promotion pricing and tag
// splitting, item replacement, status transitions and assortment completion.
type OrderService interface {
	// CreateOrder creates one order, or two when the request mixes products carrying
	// the system tag with products that do not. The untagged order is created first.
	CreateOrder(ctx context.Context, in CreateOrderInput) ([]*Order, error)
	// ChangeStatus moves an order to status. Setting the current status is a no-op.
	ChangeStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error)
	// UpdateOrderItems replaces the whole item list, returning the old lines' stock first.
	UpdateOrderItems(ctx context.Context, orderID uuid.UUID, items []OrderItemInput) (*Order, error)
	// CompleteAssortment adds the chosen free units of a deferred buy-get-free promotion.
	CompleteAssortment(ctx context.Context, orderID, promotionID uuid.UUID, selections []AssortmentSelection) (*Order, error)
	// AnnulOrder cancels an order and returns all stock its lines took.
	AnnulOrder(ctx context.Context, orderID uuid.UUID, reason string) (*Order, error)
	// RemoveOrderItem drops one line and returns its stock. Removing the paying line of a
	// promotion removes every line of that promotion instance with it.
	RemoveOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*Order, error)
	UpdateItemETA(ctx context.Context, orderID, itemID uuid.UUID, date *time.Time, note string) (*Order, error)

	// Queries
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	// ListOrders returns order headers without items, newest first.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// OrderFilter narrows ListOrders. Nil fields do not filter.
type OrderFilter struct {
	Status   *OrderStatus
	VendorID *uuid.UUID
}

// OrderDeps are the collaborators of the order service.
type OrderDeps struct {
	Stock        StockLedger
	Catalog      Catalog
	Tags         TagResolver
	Customers    CustomerDirectory
	Invoices     InvoiceSequencer
	Goals        GoalTracker
	Notifier     Notifier
	Canonicalize AgentCanonicalizer
	Log          logrus.FieldLogger
	Now          func() time.Time
}

type orderService struct {
	pool *pgxpool.Pool
	OrderDeps
}

func NewOrderService(pool *pgxpool.Pool, deps OrderDeps) OrderService {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Canonicalize == nil {
		deps.Canonicalize = IdentityCanonicalizer
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &orderService{pool: pool, OrderDeps: deps}
}

// ── Creation ─────────────────────────────────────────────────────────────────

func validateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 && len(in.GiftItems) == 0 && len(in.PromotionIDs) == 0 {
		return validationErrorf("order must have at least one item, gift item or promotion")
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return validationErrorf("item quantity must be greater than zero")
		}
	}
	requested := make(map[uuid.UUID]bool, len(in.PromotionIDs))
	for _, id := range in.PromotionIDs {
		requested[id] = true
	}
	for _, g := range in.GiftItems {
		if g.Quantity <= 0 {
			return validationErrorf("gift item quantity must be greater than zero")
		}
		if g.PromotionID != nil && !requested[*g.PromotionID] {
			return validationErrorf("assortment selection references promotion %s which is not on the order", *g.PromotionID)
		}
	}
	return nil
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) ([]*Order, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	owner, err := s.resolveOwner(ctx, tx, in.ActorID, in.AgentOverrideID)
	if err != nil {
		return nil, err
	}
	if in.CustomerID != nil {
		if _, err := s.Customers.GetCustomerTx(ctx, tx, *in.CustomerID); err != nil {
			return nil, err
		}
	}

	products := make(map[uuid.UUID]Product, len(in.Items))
	for _, it := range in.Items {
		if _, ok := products[it.ProductID]; ok {
			continue
		}
		rp, err := s.Catalog.ResolveProductTx(ctx, tx, it.ProductID)
		if err != nil {
			return nil, err
		}
		products[it.ProductID] = rp.Product
	}

	tag, err := s.Tags.SystemTagTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	untagged, tagged := SplitByTag(in.Items, products, tag)

	var orders []*Order
	newOrder := func(notes string) *Order {
		return &Order{
			ID:            uuid.New(),
			VendorID:      owner.ID,
			CustomerID:    in.CustomerID,
			Status:        OrderStatusPending,
			PaymentStatus: PaymentStatusPending,
			Notes:         notes,
		}
	}
	taggedNotes := in.Notes
	if tag != nil {
		taggedNotes = strings.TrimSpace(in.Notes + " [" + tag.Name + "]")
	}

	switch {
	case len(tagged) > 0 && len(untagged) > 0:
		first := newOrder(in.Notes)
		if err := s.fillOrder(ctx, tx, first, untagged, in); err != nil {
			return nil, err
		}
		second := newOrder(taggedNotes)
		if err := s.fillOrder(ctx, tx, second, tagged, CreateOrderInput{}); err != nil {
			return nil, err
		}
		orders = append(orders, first, second)
	case len(tagged) > 0:
		o := newOrder(taggedNotes)
		if err := s.fillOrder(ctx, tx, o, tagged, in); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	default:
		o := newOrder(in.Notes)
		if err := s.fillOrder(ctx, tx, o, untagged, in); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if in.CustomerID != nil {
		sum := decimal.Zero
		for _, o := range orders {
			sum = sum.Add(o.Total)
		}
		if err := s.Customers.RegisterPurchaseTx(ctx, tx, *in.CustomerID, sum); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	events := make([]Event, 0, len(orders))
	for _, o := range orders {
		o.VendorUsername = owner.Username
		events = append(events, Event{Type: EventNewOrder, OrderID: o.ID, AgentID: o.VendorID, OccurredAt: s.Now()})
		s.Log.WithFields(logrus.Fields{"order_id": o.ID, "vendor": owner.Username, "total": o.Total.StringFixed(2)}).Info("order created")
	}
	notifyAll(ctx, s.Notifier, s.Log, events...)
	return orders, nil
}

// resolveOwner returns the seller that will own the order.
func (s *orderService) resolveOwner(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, overrideID *uuid.UUID) (*Agent, error) {
	actor, err := getAgent(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	owner := actor
	if overrideID != nil && *overrideID != actorID {
		if !actor.CanOverrideOwner() {
			return nil, businessErrorf("agent %s may not create orders on behalf of another agent", actor.Username)
		}
		owner, err = getAgent(ctx, tx, *overrideID)
		if err != nil {
			return nil, err
		}
	}
	if owner.Role != RoleSeller {
		return nil, businessErrorf("agent %s is not a seller and cannot own orders", owner.Username)
	}
	return owner, nil
}

// fillOrder prices items, promotions and gifts of in onto o, adjusts stock and inserts o.
func (s *orderService) fillOrder(ctx context.Context, tx pgx.Tx, o *Order, items []OrderItemInput, in CreateOrderInput) error {
	for _, req := range items {
		line, err := s.processItem(ctx, tx, o.ID, req, req.AllowOutOfStock, StockReasonOrderCreated)
		if err != nil {
			return err
		}
		s.appendLine(o, line)
	}

	selections := make(map[uuid.UUID][]AssortmentSelection)
	var standaloneGifts []GiftItemInput
	for _, g := range in.GiftItems {
		if g.PromotionID == nil {
			standaloneGifts = append(standaloneGifts, g)
			continue
		}
		selections[*g.PromotionID] = append(selections[*g.PromotionID], AssortmentSelection{ProductID: g.ProductID, Quantity: g.Quantity})
	}

	for _, promoID := range in.PromotionIDs {
		promo, err := getPromotion(ctx, tx, promoID, true)
		if err != nil {
			return err
		}
		main, err := s.Catalog.ResolveProductTx(ctx, tx, promo.MainProductID)
		if err != nil {
			return err
		}
		resolved, err := ResolvePromotion(promo, *main, selections[promoID], s.Now(), uuid.New())
		if err != nil {
			return err
		}
		for _, line := range resolved.Lines {
			if err := s.consumeNonBlocking(ctx, tx, o.ID, &line); err != nil {
				return err
			}
			s.appendLine(o, line)
		}
		if resolved.AwaitingAssortment {
			o.Status = OrderStatusPendingPromotionCompletion
		}
	}

	for _, g := range standaloneGifts {
		line := freeLine(g.ProductID, g.Quantity, nil, nil)
		if err := s.consumeNonBlocking(ctx, tx, o.ID, &line); err != nil {
			return err
		}
		s.appendLine(o, line)
	}

	o.RecalculateTotal()
	return insertOrderTx(ctx, tx, o)
}

func (s *orderService) appendLine(o *Order, line LineItem) {
	line.ID = uuid.New()
	line.OrderID = o.ID
	line.Position = 1
	if n := len(o.Items); n > 0 {
		line.Position = o.Items[n-1].Position + 1
	}
	o.Items = append(o.Items, line)
}

// processItem prices a requested line at the product's effective price. Sufficient
// stock is decremented; insufficient stock fails unless allowOutOfStock, in which case
// the line is flagged and stock is left untouched.
func (s *orderService) processItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, req OrderItemInput, allowOutOfStock bool, reason string) (LineItem, error) {
	rp, err := s.Catalog.ResolveProductTx(ctx, tx, req.ProductID)
	if err != nil {
		return LineItem{}, err
	}
	line := LineItem{
		ProductID:   req.ProductID,
		ProductName: rp.Product.Name,
		Quantity:    req.Quantity,
		UnitPrice:   rp.EffectivePrice,
		Subtotal:    rp.EffectivePrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
	}
	if rp.EffectiveStock < req.Quantity {
		if !allowOutOfStock {
			return LineItem{}, businessErrorf("insufficient stock for product %q: available %d, requested %d",
				rp.Product.Name, rp.EffectiveStock, req.Quantity)
		}
		line.OutOfStock = true
		return line, nil
	}
	if _, err := s.Stock.DecreaseTx(ctx, tx, req.ProductID, req.Quantity, reason, &orderID); err != nil {
		return LineItem{}, err
	}
	line.StockDeducted = req.Quantity
	return line, nil
}

// consumeNonBlocking takes stock for a promotion or gift line even when it runs
// negative, flagging the line when stock was short.
func (s *orderService) consumeNonBlocking(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, line *LineItem) error {
	rp, err := s.Catalog.ResolveProductTx(ctx, tx, line.ProductID)
	if err != nil {
		return err
	}
	line.ProductName = rp.Product.Name
	line.OutOfStock = rp.EffectiveStock < line.Quantity
	if _, err := s.Stock.DecreaseTx(ctx, tx, line.ProductID, line.Quantity, StockReasonOrderCreated, &orderID); err != nil {
		return err
	}
	line.StockDeducted = line.Quantity
	return nil
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *orderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error) {
	status, err := ParseOrderStatus(string(status))
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}

	prev := o.Status
	o.Status = status
	evt := Event{Type: EventInventoryUpdate, OrderID: o.ID, AgentID: o.VendorID, Reason: "ORDER_STATUS_CHANGED", OccurredAt: s.Now()}

	if status == OrderStatusCompleted {
		now := s.Now()
		if o.CompletedAt == nil {
			o.CompletedAt = &now
		}
		if o.InvoiceNumber == nil {
			n, err := s.Invoices.NextInvoiceNumberTx(ctx, tx)
			if err != nil {
				return nil, err
			}
			o.InvoiceNumber = &n
			created := o.CreatedAt
			if err := s.Goals.UpdateGoalProgressTx(ctx, tx, s.Canonicalize(o.VendorID), o.Total, int(created.Month()), created.Year()); err != nil {
				return nil, err
			}
			evt = Event{Type: EventOrderCompleted, OrderID: o.ID, AgentID: o.VendorID, OccurredAt: now}
		}
	}

	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"order_id": o.ID, "from": prev, "to": status}).Info("order status changed")
	notifyAll(ctx, s.Notifier, s.Log, evt)
	return o, nil
}

func (s *orderService) UpdateOrderItems(ctx context.Context, orderID uuid.UUID, items []OrderItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, validationErrorf("order must have at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, validationErrorf("item quantity must be greater than zero")
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if !o.Status.AllowsItemEdits() {
		return nil, businessErrorf("order %s is %s and its items can no longer be changed", o.ID, o.Status)
	}

	if err := s.returnStock(ctx, tx, o, StockReasonOrderUpdated); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return nil, fmt.Errorf("failed to clear order items: %w", err)
	}

	o.Items = nil
	for _, req := range items {
		line, err := s.processItem(ctx, tx, o.ID, req, false, StockReasonOrderUpdated)
		if err != nil {
			return nil, err
		}
		s.appendLine(o, line)
	}
	for i := range o.Items {
		if err := insertOrderItemTx(ctx, tx, &o.Items[i]); err != nil {
			return nil, err
		}
	}

	o.RecalculateTotal()
	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	notifyAll(ctx, s.Notifier, s.Log, Event{Type: EventInventoryUpdate, OrderID: o.ID, AgentID: o.VendorID, Reason: "ORDER_UPDATED", OccurredAt: s.Now()})
	return o, nil
}

// returnStock gives back whatever stock each line of o actually took.
func (s *orderService) returnStock(ctx context.Context, tx pgx.Tx, o *Order, reason string) error {
	for _, it := range o.Items {
		if it.StockDeducted <= 0 {
			continue
		}
		if _, err := s.Stock.IncreaseTx(ctx, tx, it.ProductID, it.StockDeducted, reason, &o.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) CompleteAssortment(ctx context.Context, orderID, promotionID uuid.UUID, selections []AssortmentSelection) (*Order, error) {
	if len(selections) == 0 {
		return nil, validationErrorf("assortment selection is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderStatusPendingPromotionCompletion {
		return nil, businessErrorf("order %s is %s, not awaiting an assortment", o.ID, o.Status)
	}
	promo, err := getPromotion(ctx, tx, promotionID, true)
	if err != nil {
		return nil, err
	}
	if promo.Type != PromotionBuyGetFree {
		return nil, businessErrorf("promotion %q does not grant an assortment", promo.Name)
	}
	if err := ValidateAssortment(promo, selections); err != nil {
		return nil, err
	}

	instanceID := uuid.New()
	for _, it := range o.Items {
		if it.PromotionID != nil && *it.PromotionID == promo.ID && it.PromotionInstanceID != nil {
			instanceID = *it.PromotionInstanceID
			break
		}
	}

	for _, sel := range selections {
		rp, err := s.Catalog.ResolveProductTx(ctx, tx, sel.ProductID)
		if err != nil {
			return nil, err
		}
		line := freeLine(sel.ProductID, sel.Quantity, &promo.ID, &instanceID)
		line.ProductName = rp.Product.Name
		if rp.EffectiveStock >= sel.Quantity {
			if _, err := s.Stock.DecreaseTx(ctx, tx, sel.ProductID, sel.Quantity, StockReasonAssortment, &o.ID); err != nil {
				return nil, err
			}
			line.StockDeducted = sel.Quantity
		} else {
			line.OutOfStock = true
		}
		s.appendLine(o, line)
		if err := insertOrderItemTx(ctx, tx, &o.Items[len(o.Items)-1]); err != nil {
			return nil, err
		}
	}

	o.Status = OrderStatusConfirmed
	o.RecalculateTotal()
	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit assortment: %w", err)
	}

	notifyAll(ctx, s.Notifier, s.Log, Event{Type: EventInventoryUpdate, OrderID: o.ID, AgentID: o.VendorID, Reason: "ASSORTMENT_COMPLETED", OccurredAt: s.Now()})
	return o, nil
}

func (s *orderService) AnnulOrder(ctx context.Context, orderID uuid.UUID, reason string) (*Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErrorf("a reason is required to annul an order")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if o.Status == OrderStatusCancelled {
		return nil, businessErrorf("order %s is already cancelled", o.ID)
	}
	paid, err := sumActivePayments(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	if paid.IsPositive() {
		return nil, businessErrorf("order %s has active payments totalling %s; cancel them first", o.ID, paid.StringFixed(2))
	}

	if err := s.returnStock(ctx, tx, o, StockReasonOrderAnnulled); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE order_items SET stock_deducted = 0 WHERE order_id = $1`, o.ID); err != nil {
		return nil, fmt.Errorf("failed to reset stock on order items: %w", err)
	}
	for i := range o.Items {
		o.Items[i].StockDeducted = 0
	}

	o.Status = OrderStatusCancelled
	o.CancellationReason = reason
	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit annulment: %w", err)
	}

	notifyAll(ctx, s.Notifier, s.Log, Event{Type: EventInventoryUpdate, OrderID: o.ID, AgentID: o.VendorID, Reason: "ORDER_ANNULLED", OccurredAt: s.Now()})
	return o, nil
}

func (s *orderService) RemoveOrderItem(ctx context.Context, orderID, itemID uuid.UUID) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if !o.Status.AllowsItemEdits() {
		return nil, businessErrorf("order %s is %s and its items can no longer be changed", o.ID, o.Status)
	}

	var target *LineItem
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			target = &o.Items[i]
			break
		}
	}
	if target == nil {
		return nil, notFound("order item", itemID)
	}
	removed := func(it LineItem) bool {
		if it.ID == target.ID {
			return true
		}
		return target.IsPromotionItem && !target.IsFreeItem && target.PromotionInstanceID != nil &&
			it.PromotionInstanceID != nil && *it.PromotionInstanceID == *target.PromotionInstanceID
	}

	var kept, dropped []LineItem
	for _, it := range o.Items {
		if removed(it) {
			dropped = append(dropped, it)
		} else {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return nil, businessErrorf("order %s would be left without items; annul it instead", o.ID)
	}

	for _, it := range dropped {
		if it.StockDeducted > 0 {
			if _, err := s.Stock.IncreaseTx(ctx, tx, it.ProductID, it.StockDeducted, StockReasonItemRemoved, &o.ID); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, it.ID); err != nil {
			return nil, fmt.Errorf("failed to delete order item: %w", err)
		}
	}

	o.Items = kept
	if o.Status == OrderStatusPendingPromotionCompletion && !o.hasPromotionLines() {
		o.Status = OrderStatusPending
	}
	o.RecalculateTotal()
	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item removal: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"order_id": o.ID, "item_id": itemID, "lines_removed": len(dropped)}).Info("order item removed")
	notifyAll(ctx, s.Notifier, s.Log, Event{Type: EventInventoryUpdate, OrderID: o.ID, AgentID: o.VendorID, Reason: "ORDER_ITEM_REMOVED", OccurredAt: s.Now()})
	return o, nil
}

// hasPromotionLines reports whether any line still belongs to a promotion.
func (o *Order) hasPromotionLines() bool {
	for _, it := range o.Items {
		if it.IsPromotionItem {
			return true
		}
	}
	return false
}

func (s *orderService) UpdateItemETA(ctx context.Context, orderID, itemID uuid.UUID, date *time.Time, note string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := loadOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, it := range o.Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, notFound("order item", itemID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE order_items SET estimated_arrival_date = $1, estimated_arrival_note = $2 WHERE id = $3
	`, date, note, itemID); err != nil {
		return nil, fmt.Errorf("failed to update item arrival estimate: %w", err)
	}
	o.Items[idx].EstimatedArrivalDate = date
	o.Items[idx].EstimatedArrivalNote = note

	if err := saveOrderHeaderTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item estimate: %w", err)
	}
	return o, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return loadOrder(ctx, s.pool, orderID, false)
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	query := orderSelect + ` WHERE ($1::text IS NULL OR o.status = $1) AND ($2::uuid IS NULL OR o.vendor_id = $2)
		ORDER BY o.created_at DESC`
	var status *string
	if filter.Status != nil {
		st := string(*filter.Status)
		status = &st
	}
	rows, err := s.pool.Query(ctx, query, status, filter.VendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
