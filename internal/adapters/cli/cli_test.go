package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-ledger/internal/adapters/cli"
	"sales-ledger/internal/app"
	"sales-ledger/internal/core"
)

type fakeService struct {
	app.ApplicationService

	createOrder app.CreateOrderRequest
	discount    app.ApplyDiscountRequest
	payment     app.RegisterPaymentRequest
	transfer    app.CreateTransferRequest
	annul       app.AnnulOrderRequest
	listOrders  app.ListOrdersRequest
	removeItem  app.RemoveOrderItemRequest
	activated   app.ActivatePromotionRequest
	activeOnly  bool
}

func (f *fakeService) RemoveOrderItem(_ context.Context, req app.RemoveOrderItemRequest) (*app.OrderResult, error) {
	f.removeItem = req
	return &app.OrderResult{Order: &core.Order{ID: req.OrderID}}, nil
}

func (f *fakeService) ActivatePromotion(_ context.Context, req app.ActivatePromotionRequest) (*app.PromotionResult, error) {
	f.activated = req
	return &app.PromotionResult{Promotion: &core.Promotion{ID: req.PromotionID, Active: true}}, nil
}

func (f *fakeService) CreateOrder(_ context.Context, req app.CreateOrderRequest) (*app.OrdersResult, error) {
	f.createOrder = req
	return &app.OrdersResult{Orders: []*core.Order{{ID: uuid.New()}}}, nil
}

func (f *fakeService) ListOrders(_ context.Context, req app.ListOrdersRequest) (*app.OrderListResult, error) {
	f.listOrders = req
	return &app.OrderListResult{}, nil
}

func (f *fakeService) AnnulOrder(_ context.Context, req app.AnnulOrderRequest) (*app.OrderResult, error) {
	f.annul = req
	return &app.OrderResult{Order: &core.Order{ID: req.OrderID}}, nil
}

func (f *fakeService) ApplyDiscount(_ context.Context, req app.ApplyDiscountRequest) (*app.DiscountResult, error) {
	f.discount = req
	return &app.DiscountResult{}, nil
}

func (f *fakeService) RegisterPayment(_ context.Context, req app.RegisterPaymentRequest) (*app.PaymentResult, error) {
	f.payment = req
	return &app.PaymentResult{}, nil
}

func (f *fakeService) CreateTransfer(_ context.Context, req app.CreateTransferRequest) (*app.TransferResult, error) {
	f.transfer = req
	return &app.TransferResult{Available: decimal.NewFromInt(150)}, nil
}

func (f *fakeService) GetAvailableBalance(_ context.Context, id uuid.UUID) (*app.AvailableBalanceResult, error) {
	return &app.AvailableBalanceResult{PaymentID: id.String(), Available: decimal.RequireFromString("400.00")}, nil
}

func (f *fakeService) ListPromotions(_ context.Context, activeOnly bool) (*app.PromotionListResult, error) {
	f.activeOnly = activeOnly
	return &app.PromotionListResult{}, nil
}

func run(t *testing.T, svc *fakeService, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(context.Background(), svc, "seller", args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_Errors(t *testing.T) {
	svc := &fakeService{}
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "no command given"},
		{"unknown command", []string{"refund"}, "unknown command: refund"},
		{"missing id", []string{"order"}, "missing <order-id>"},
		{"bad id", []string{"payments", "abc"}, "invalid <order-id>"},
		{"status needs value", []string{"status", uuid.NewString()}, "usage: status"},
		{"bad amount", []string{"pay", uuid.NewString(), "ten", "CASH"}, "invalid amount"},
		{"bad percentage", []string{"discount", uuid.NewString(), "ADMIN_CUSTOM", "x"}, "invalid percentage"},
		{"transfer too short", []string{"transfer", uuid.NewString()}, "usage: transfer"},
		{"bad month", []string{"transfer", uuid.NewString(), uuid.NewString(), "May", "2026"}, "invalid month"},
		{"remove-item needs item", []string{"remove-item", uuid.NewString()}, "missing <item-id>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, svc, "", tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRun_CreateOrderFromStdin(t *testing.T) {
	svc := &fakeService{}
	productID := uuid.New()

	out, err := run(t, svc, `{"items":[{"product_id":"`+productID.String()+`","quantity":3}]}`, "create-order")
	require.NoError(t, err)
	assert.Equal(t, "seller", svc.createOrder.Actor)
	require.Len(t, svc.createOrder.Items, 1)
	assert.Equal(t, 3, svc.createOrder.Items[0].Quantity)

	var decoded app.OrdersResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded.Orders, 1)

	_, err = run(t, svc, `not json`, "create-order")
	assert.ErrorContains(t, err, "invalid JSON on stdin")
}

func TestRun_Discount(t *testing.T) {
	svc := &fakeService{}
	orderID := uuid.New()

	_, err := run(t, svc, "", "discount", orderID.String(), "admin_10")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN_10", svc.discount.Type)
	assert.Nil(t, svc.discount.Percentage)

	_, err = run(t, svc, "", "discount", orderID.String(), "OWNER_ADDITIONAL", "5.5", "loyal", "customer")
	require.NoError(t, err)
	require.NotNil(t, svc.discount.Percentage)
	assert.Equal(t, "5.5", svc.discount.Percentage.String())
	assert.Equal(t, "loyal customer", svc.discount.Reason)
	assert.Equal(t, orderID, svc.discount.OrderID)
}

func TestRun_Pay(t *testing.T) {
	svc := &fakeService{}
	orderID := uuid.New()

	_, err := run(t, svc, "", "pay", orderID.String(), "250.50", "cash", "first", "instalment")
	require.NoError(t, err)
	assert.Equal(t, "250.5", svc.payment.Amount.String())
	assert.Equal(t, "CASH", svc.payment.Method)
	assert.Equal(t, "first instalment", svc.payment.Notes)
	assert.NotNil(t, svc.payment.ActualPaymentDate)
	assert.Equal(t, "seller", svc.payment.Actor)
}

func TestRun_Transfer(t *testing.T) {
	svc := &fakeService{}
	paymentID, destID := uuid.New(), uuid.New()

	out, err := run(t, svc, "", "transfer", paymentID.String(), destID.String(), "5", "2026")
	require.NoError(t, err)
	assert.Equal(t, paymentID, svc.transfer.PaymentID)
	assert.Equal(t, destID, svc.transfer.DestAgentID)
	assert.Equal(t, 5, svc.transfer.TargetMonth)
	assert.Equal(t, 2026, svc.transfer.TargetYear)
	assert.Nil(t, svc.transfer.Amount, "omitted amount transfers the whole balance")
	assert.Contains(t, out, `"available": "150"`)

	_, err = run(t, svc, "", "transfer", paymentID.String(), destID.String(), "5", "2026", "120.25")
	require.NoError(t, err)
	require.NotNil(t, svc.transfer.Amount)
	assert.Equal(t, "120.25", svc.transfer.Amount.String())
}

func TestRun_Queries(t *testing.T) {
	svc := &fakeService{}

	_, err := run(t, svc, "", "orders", "pendiente")
	require.NoError(t, err)
	assert.Equal(t, "pendiente", svc.listOrders.Status)

	_, err = run(t, svc, "", "promotions", "--active")
	require.NoError(t, err)
	assert.True(t, svc.activeOnly)

	paymentID := uuid.New()
	out, err := run(t, svc, "", "available", paymentID.String())
	require.NoError(t, err)
	assert.Contains(t, out, paymentID.String())
	assert.Contains(t, out, `"400"`)
}

func TestRun_AnnulJoinsReason(t *testing.T) {
	svc := &fakeService{}
	orderID := uuid.New()

	_, err := run(t, svc, "", "annul", orderID.String(), "customer", "changed", "mind")
	require.NoError(t, err)
	assert.Equal(t, "customer changed mind", svc.annul.Reason)
	assert.Equal(t, orderID, svc.annul.OrderID)
}

func TestRun_RemoveItemAndActivatePromotion(t *testing.T) {
	svc := &fakeService{}
	orderID, itemID, promoID := uuid.New(), uuid.New(), uuid.New()

	_, err := run(t, svc, "", "remove-item", orderID.String(), itemID.String())
	require.NoError(t, err)
	assert.Equal(t, app.RemoveOrderItemRequest{Actor: "seller", OrderID: orderID, ItemID: itemID}, svc.removeItem)

	out, err := run(t, svc, "", "activate-promotion", promoID.String())
	require.NoError(t, err)
	assert.Equal(t, promoID, svc.activated.PromotionID)
	assert.Contains(t, out, `"active": true`)
}
