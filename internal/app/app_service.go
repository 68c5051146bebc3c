package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sales-ledger/internal/core"
	"sales-ledger/internal/lock"
)

var tracer = otel.Tracer("sales-ledger/app")

// Services are the core components the application service delegates to.
type Services struct {
	Agents     core.AgentDirectory
	Orders     core.OrderService
	Discounts  core.DiscountService
	Payments   core.PaymentService
	Transfers  core.TransferService
	Promotions core.PromotionService
	Catalog    core.Catalog
	Stock      core.StockLedger
}

type appService struct {
	Services
	locker lock.Locker
	log    logrus.FieldLogger
	ping   func(ctx context.Context) error
}

// NewAppService constructs an appService that satisfies ApplicationService.
// ping backs the health check and may be nil.
func NewAppService(svcs Services, locker lock.Locker, log logrus.FieldLogger, ping func(ctx context.Context) error) ApplicationService {
	return &appService{Services: svcs, locker: locker, log: log, ping: ping}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "app."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withLock runs fn while holding key. Release failures are logged; the lock expires on its own.
func (s *appService) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Obtain(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithField("key", key).WithError(err).Warn("failed to release lock")
		}
	}()
	return fn(ctx)
}

// actor resolves the username supplied by the adapter.
func (s *appService) actor(ctx context.Context, username string) (*core.Agent, error) {
	if username == "" {
		return nil, &core.ValidationError{Message: "acting agent is required"}
	}
	return s.Agents.FindByUsername(ctx, username)
}

var (
	managers   = []core.AgentRole{core.RoleAdmin, core.RoleOwner}
	ownersOnly = []core.AgentRole{core.RoleOwner}
)

// authorize resolves the actor and requires one of roles for action.
func (s *appService) authorize(ctx context.Context, username, action string, roles []core.AgentRole) (*core.Agent, error) {
	actor, err := s.actor(ctx, username)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(roles, actor.Role) {
		return nil, &core.BusinessError{Message: fmt.Sprintf("agent %s (%s) may not %s", actor.Username, actor.Role, action)}
	}
	return actor, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (res *OrdersResult, err error) {
	ctx, span := startSpan(ctx, "CreateOrder", attribute.String("actor", req.Actor), attribute.Int("items", len(req.Items)))
	defer func() { endSpan(span, err) }()

	actor, err := s.actor(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	in := core.CreateOrderInput{
		ActorID:         actor.ID,
		AgentOverrideID: req.AgentOverrideID,
		CustomerID:      req.CustomerID,
		PromotionIDs:    req.PromotionIDs,
		Notes:           req.Notes,
	}
	for _, l := range req.Items {
		in.Items = append(in.Items, core.OrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity, AllowOutOfStock: l.AllowOutOfStock})
	}
	for _, g := range req.GiftItems {
		in.GiftItems = append(in.GiftItems, core.GiftItemInput{PromotionID: g.PromotionID, ProductID: g.ProductID, Quantity: g.Quantity})
	}

	orders, err := s.Orders.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		span.AddEvent("order created", trace.WithAttributes(attribute.String("order_id", o.ID.String())))
	}
	return &OrdersResult{Orders: orders}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
	o, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: o}, nil
}

func (s *appService) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error) {
	filter := core.OrderFilter{VendorID: req.VendorID}
	if req.Status != "" {
		st, err := core.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	orders, err := s.Orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

// mutateOrder resolves the actor and runs fn under the order's lock.
func (s *appService) mutateOrder(ctx context.Context, name, actorName string, orderID uuid.UUID, fn func(ctx context.Context, actor *core.Agent) (*core.Order, error)) (res *OrderResult, err error) {
	ctx, span := startSpan(ctx, name, attribute.String("actor", actorName), attribute.String("order_id", orderID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, actorName, "change orders", managers)
	if err != nil {
		return nil, err
	}
	var o *core.Order
	err = s.withLock(ctx, lock.OrderKey(orderID), func(ctx context.Context) error {
		var err error
		o, err = fn(ctx, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: o}, nil
}

func (s *appService) ChangeOrderStatus(ctx context.Context, req ChangeStatusRequest) (*OrderResult, error) {
	st, err := core.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutateOrder(ctx, "ChangeOrderStatus", req.Actor, req.OrderID, func(ctx context.Context, _ *core.Agent) (*core.Order, error) {
		return s.Orders.ChangeStatus(ctx, req.OrderID, st)
	})
}

func (s *appService) UpdateOrderItems(ctx context.Context, req UpdateOrderItemsRequest) (*OrderResult, error) {
	items := make([]core.OrderItemInput, len(req.Items))
	for i, l := range req.Items {
		items[i] = core.OrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity, AllowOutOfStock: l.AllowOutOfStock}
	}
	return s.mutateOrder(ctx, "UpdateOrderItems", req.Actor, req.OrderID, func(ctx context.Context, _ *core.Agent) (*core.Order, error) {
		return s.Orders.UpdateOrderItems(ctx, req.OrderID, items)
	})
}

func (s *appService) CompleteAssortment(ctx context.Context, req CompleteAssortmentRequest) (*OrderResult, error) {
	selections := make([]core.AssortmentSelection, len(req.Selections))
	for i, sel := range req.Selections {
		selections[i] = core.AssortmentSelection{ProductID: sel.ProductID, Quantity: sel.Quantity}
	}
	return s.mutateOrder(ctx, "CompleteAssortment", req.Actor, req.OrderID, func(ctx context.Context, _ *core.Agent) (*core.Order, error) {
		return s.Orders.CompleteAssortment(ctx, req.OrderID, req.PromotionID, selections)
	})
}

func (s *appService) AnnulOrder(ctx context.Context, req AnnulOrderRequest) (*OrderResult, error) {
	return s.mutateOrder(ctx, "AnnulOrder", req.Actor, req.OrderID, func(ctx context.Context, actor *core.Agent) (*core.Order, error) {
		o, err := s.Orders.AnnulOrder(ctx, req.OrderID, req.Reason)
		if err == nil {
			s.log.WithFields(logrus.Fields{"order_id": o.ID, "actor": actor.Username}).Info("order annulled")
		}
		return o, err
	})
}

func (s *appService) UpdateItemETA(ctx context.Context, req UpdateItemETARequest) (*OrderResult, error) {
	return s.mutateOrder(ctx, "UpdateItemETA", req.Actor, req.OrderID, func(ctx context.Context, _ *core.Agent) (*core.Order, error) {
		return s.Orders.UpdateItemETA(ctx, req.OrderID, req.ItemID, req.EstimatedArrivalDate, req.EstimatedArrivalNote)
	})
}

func (s *appService) RemoveOrderItem(ctx context.Context, req RemoveOrderItemRequest) (*OrderResult, error) {
	return s.mutateOrder(ctx, "RemoveOrderItem", req.Actor, req.OrderID, func(ctx context.Context, _ *core.Agent) (*core.Order, error) {
		return s.Orders.RemoveOrderItem(ctx, req.OrderID, req.ItemID)
	})
}

// ── Discounts ────────────────────────────────────────────────────────────────

func (s *appService) ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (res *DiscountResult, err error) {
	ctx, span := startSpan(ctx, "ApplyDiscount", attribute.String("order_id", req.OrderID.String()), attribute.String("type", req.Type))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "apply discounts", managers)
	if err != nil {
		return nil, err
	}
	dtype := core.DiscountType(req.Type)
	_, isPreset := core.PresetPercentage(dtype)
	if !isPreset && req.Percentage == nil {
		return nil, &core.ValidationError{Message: fmt.Sprintf("percentage is required for %s discounts", dtype)}
	}

	var d *core.OrderDiscount
	err = s.withLock(ctx, lock.OrderKey(req.OrderID), func(ctx context.Context) error {
		var err error
		switch {
		case isPreset:
			d, err = s.Discounts.ApplyPreset(ctx, req.OrderID, dtype, req.Reason, actor.ID)
		case dtype == core.DiscountOwnerAdditional:
			d, err = s.Discounts.ApplyOwnerAdditional(ctx, req.OrderID, *req.Percentage, req.Reason, actor.ID)
		default:
			d, err = s.Discounts.ApplyDiscount(ctx, req.OrderID, *req.Percentage, dtype, req.Reason, actor.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.discountResult(ctx, d)
}

func (s *appService) RevokeDiscount(ctx context.Context, req RevokeDiscountRequest) (res *DiscountResult, err error) {
	ctx, span := startSpan(ctx, "RevokeDiscount", attribute.String("discount_id", req.DiscountID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "revoke discounts", ownersOnly)
	if err != nil {
		return nil, err
	}
	d, err := s.Discounts.RevokeDiscount(ctx, req.DiscountID, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.discountResult(ctx, d)
}

func (s *appService) discountResult(ctx context.Context, d *core.OrderDiscount) (*DiscountResult, error) {
	o, err := s.Orders.GetOrder(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}
	return &DiscountResult{Discount: d, Order: o}, nil
}

func (s *appService) ListDiscounts(ctx context.Context, orderID uuid.UUID) (*DiscountListResult, error) {
	discounts, err := s.Discounts.ListDiscounts(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &DiscountListResult{Discounts: discounts}, nil
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *appService) RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (res *PaymentResult, err error) {
	ctx, span := startSpan(ctx, "RegisterPayment", attribute.String("order_id", req.OrderID.String()), attribute.String("amount", req.Amount.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "register payments", managers)
	if err != nil {
		return nil, err
	}
	var p *core.Payment
	err = s.withLock(ctx, lock.OrderKey(req.OrderID), func(ctx context.Context) error {
		var err error
		p, err = s.Payments.RegisterPayment(ctx, core.RegisterPaymentInput{
			OrderID:           req.OrderID,
			Amount:            req.Amount,
			Method:            core.PaymentMethod(req.Method),
			ActorID:           actor.ID,
			ActualPaymentDate: req.ActualPaymentDate,
			WithinDeadline:    req.WithinDeadline,
			DiscountApplied:   req.DiscountApplied,
			Notes:             req.Notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.paymentResult(ctx, p)
}

func (s *appService) CancelPayment(ctx context.Context, req CancelPaymentRequest) (res *PaymentResult, err error) {
	ctx, span := startSpan(ctx, "CancelPayment", attribute.String("payment_id", req.PaymentID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "cancel payments", managers)
	if err != nil {
		return nil, err
	}
	var p *core.Payment
	err = s.withLock(ctx, lock.PaymentKey(req.PaymentID), func(ctx context.Context) error {
		var err error
		p, err = s.Payments.CancelPayment(ctx, req.PaymentID, req.Reason, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.paymentResult(ctx, p)
}

func (s *appService) RestorePayment(ctx context.Context, req RestorePaymentRequest) (res *PaymentResult, err error) {
	ctx, span := startSpan(ctx, "RestorePayment", attribute.String("payment_id", req.PaymentID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "restore payments", managers)
	if err != nil {
		return nil, err
	}
	var p *core.Payment
	err = s.withLock(ctx, lock.PaymentKey(req.PaymentID), func(ctx context.Context) error {
		var err error
		p, err = s.Payments.RestorePayment(ctx, req.PaymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"payment_id": p.ID, "actor": actor.Username}).Info("payment restored")
	return s.paymentResult(ctx, p)
}

func (s *appService) paymentResult(ctx context.Context, p *core.Payment) (*PaymentResult, error) {
	summary, err := s.Payments.Summary(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: p, Summary: summary}, nil
}

func (s *appService) ListPayments(ctx context.Context, orderID uuid.UUID) (*PaymentListResult, error) {
	payments, err := s.Payments.ListPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary, err := s.Payments.Summary(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments, Summary: summary}, nil
}

// ── Transfers ────────────────────────────────────────────────────────────────

func (s *appService) CreateTransfer(ctx context.Context, req CreateTransferRequest) (res *TransferResult, err error) {
	ctx, span := startSpan(ctx, "CreateTransfer", attribute.String("payment_id", req.PaymentID.String()), attribute.String("dest", req.DestAgentID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "transfer payments", ownersOnly)
	if err != nil {
		return nil, err
	}
	var t *core.PaymentTransfer
	err = s.withLock(ctx, lock.PaymentKey(req.PaymentID), func(ctx context.Context) error {
		var err error
		t, err = s.Transfers.CreateTransfer(ctx, core.CreateTransferInput{
			PaymentID:   req.PaymentID,
			DestAgentID: req.DestAgentID,
			Amount:      req.Amount,
			TargetMonth: req.TargetMonth,
			TargetYear:  req.TargetYear,
			Reason:      req.Reason,
			ActorID:     actor.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.transferResult(ctx, t)
}

func (s *appService) RevokeTransfer(ctx context.Context, req RevokeTransferRequest) (res *TransferResult, err error) {
	ctx, span := startSpan(ctx, "RevokeTransfer", attribute.String("transfer_id", req.TransferID.String()))
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, req.Actor, "revoke transfers", ownersOnly)
	if err != nil {
		return nil, err
	}
	t, err := s.Transfers.RevokeTransfer(ctx, req.TransferID, req.Reason, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.transferResult(ctx, t)
}

func (s *appService) transferResult(ctx context.Context, t *core.PaymentTransfer) (*TransferResult, error) {
	available, err := s.Transfers.AvailableBalance(ctx, t.PaymentID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: t, Available: available}, nil
}

func (s *appService) ListTransfers(ctx context.Context, req ListTransfersRequest) (*TransferListResult, error) {
	var (
		transfers []core.PaymentTransfer
		err       error
		selectors int
	)
	for _, id := range []*uuid.UUID{req.PaymentID, req.OriginAgentID, req.DestAgentID} {
		if id != nil {
			selectors++
		}
	}
	if selectors != 1 {
		return nil, &core.ValidationError{Message: "exactly one of payment_id, origin_agent_id or dest_agent_id is required"}
	}

	switch {
	case req.PaymentID != nil:
		transfers, err = s.Transfers.ListByPayment(ctx, *req.PaymentID)
	case req.OriginAgentID != nil:
		transfers, err = s.Transfers.ListByOriginAgent(ctx, *req.OriginAgentID)
	default:
		transfers, err = s.Transfers.ListByDestAgent(ctx, *req.DestAgentID)
	}
	if err != nil {
		return nil, err
	}
	return &TransferListResult{Transfers: transfers}, nil
}

func (s *appService) GetAvailableBalance(ctx context.Context, paymentID uuid.UUID) (*AvailableBalanceResult, error) {
	available, err := s.Transfers.AvailableBalance(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &AvailableBalanceResult{PaymentID: paymentID.String(), Available: available}, nil
}

// ── Promotions & catalog ─────────────────────────────────────────────────────

func (s *appService) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (res *PromotionResult, err error) {
	ctx, span := startSpan(ctx, "CreatePromotion", attribute.String("type", req.Type))
	defer func() { endSpan(span, err) }()

	if _, err := s.authorize(ctx, req.Actor, "manage promotions", managers); err != nil {
		return nil, err
	}
	p, err := s.Promotions.CreatePromotion(ctx, promotionInput(req))
	if err != nil {
		return nil, err
	}
	return &PromotionResult{Promotion: p}, nil
}

func (s *appService) UpdatePromotion(ctx context.Context, req UpdatePromotionRequest) (res *PromotionResult, err error) {
	ctx, span := startSpan(ctx, "UpdatePromotion", attribute.String("promotion_id", req.PromotionID.String()))
	defer func() { endSpan(span, err) }()

	if _, err := s.authorize(ctx, req.Actor, "manage promotions", managers); err != nil {
		return nil, err
	}
	p, err := s.Promotions.UpdatePromotion(ctx, req.PromotionID, promotionInput(req.CreatePromotionRequest))
	if err != nil {
		return nil, err
	}
	s.log.WithField("promotion_id", p.ID).Info("promotion updated")
	return &PromotionResult{Promotion: p}, nil
}

func promotionInput(req CreatePromotionRequest) core.CreatePromotionInput {
	in := core.CreatePromotionInput{
		Name:                        req.Name,
		Description:                 req.Description,
		Type:                        core.PromotionType(req.Type),
		BuyQuantity:                 req.BuyQuantity,
		PackPrice:                   req.PackPrice,
		MainProductID:               req.MainProductID,
		RequiresAssortmentSelection: req.RequiresAssortmentSelection,
		AllowStackWithDiscounts:     req.AllowStackWithDiscounts,
		ValidFrom:                   req.ValidFrom,
		ValidUntil:                  req.ValidUntil,
	}
	for _, g := range req.GiftItems {
		in.GiftItems = append(in.GiftItems, core.GiftItem{ProductID: g.ProductID, Quantity: g.Quantity})
	}
	return in
}

func (s *appService) GetPromotion(ctx context.Context, promotionID uuid.UUID) (*PromotionResult, error) {
	p, err := s.Promotions.GetPromotion(ctx, promotionID)
	if err != nil {
		return nil, err
	}
	return &PromotionResult{Promotion: p}, nil
}

func (s *appService) ListPromotions(ctx context.Context, activeOnly bool) (*PromotionListResult, error) {
	promos, err := s.Promotions.ListPromotions(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &PromotionListResult{Promotions: promos}, nil
}

func (s *appService) ActivatePromotion(ctx context.Context, req ActivatePromotionRequest) (*PromotionResult, error) {
	if _, err := s.authorize(ctx, req.Actor, "manage promotions", managers); err != nil {
		return nil, err
	}
	p, err := s.Promotions.ActivatePromotion(ctx, req.PromotionID)
	if err != nil {
		return nil, err
	}
	return &PromotionResult{Promotion: p}, nil
}

func (s *appService) DeactivatePromotion(ctx context.Context, req DeactivatePromotionRequest) (*PromotionResult, error) {
	if _, err := s.authorize(ctx, req.Actor, "manage promotions", managers); err != nil {
		return nil, err
	}
	p, err := s.Promotions.DeactivatePromotion(ctx, req.PromotionID)
	if err != nil {
		return nil, err
	}
	return &PromotionResult{Promotion: p}, nil
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.Catalog.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) ListStockMovements(ctx context.Context, productID uuid.UUID) (*StockMovementsResult, error) {
	moves, err := s.Stock.Movements(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &StockMovementsResult{Movements: moves}, nil
}

func (s *appService) Ping(ctx context.Context) error {
	if s.ping == nil {
		return errors.New("no health check configured")
	}
	return s.ping(ctx)
}
