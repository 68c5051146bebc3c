package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-ledger/internal/adapters/web"
	"sales-ledger/internal/app"
	"sales-ledger/internal/core"
	"sales-ledger/internal/lock"
)

// fakeService embeds the interface so only the methods a test sets are usable.
type fakeService struct {
	app.ApplicationService

	pingErr error
	err     error

	createOrderReq   app.CreateOrderRequest
	cancelPaymentReq app.CancelPaymentRequest
	listTransfersReq app.ListTransfersRequest
	removeItemReq    app.RemoveOrderItemRequest
	updatePromoReq   app.UpdatePromotionRequest
	activeOnly       bool
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func (f *fakeService) CreateOrder(_ context.Context, req app.CreateOrderRequest) (*app.OrdersResult, error) {
	f.createOrderReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.OrdersResult{Orders: []*core.Order{{ID: uuid.New()}}}, nil
}

func (f *fakeService) GetOrder(_ context.Context, id uuid.UUID) (*app.OrderResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &app.OrderResult{Order: &core.Order{ID: id}}, nil
}

func (f *fakeService) ChangeOrderStatus(_ context.Context, req app.ChangeStatusRequest) (*app.OrderResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &app.OrderResult{Order: &core.Order{ID: req.OrderID}}, nil
}

func (f *fakeService) CancelPayment(_ context.Context, req app.CancelPaymentRequest) (*app.PaymentResult, error) {
	f.cancelPaymentReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.PaymentResult{Payment: &core.Payment{ID: req.PaymentID}}, nil
}

func (f *fakeService) ListTransfers(_ context.Context, req app.ListTransfersRequest) (*app.TransferListResult, error) {
	f.listTransfersReq = req
	return &app.TransferListResult{}, f.err
}

func (f *fakeService) ListPromotions(_ context.Context, activeOnly bool) (*app.PromotionListResult, error) {
	f.activeOnly = activeOnly
	return &app.PromotionListResult{}, nil
}

func (f *fakeService) RemoveOrderItem(_ context.Context, req app.RemoveOrderItemRequest) (*app.OrderResult, error) {
	f.removeItemReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.OrderResult{Order: &core.Order{ID: req.OrderID}}, nil
}

func (f *fakeService) UpdatePromotion(_ context.Context, req app.UpdatePromotionRequest) (*app.PromotionResult, error) {
	f.updatePromoReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.PromotionResult{Promotion: &core.Promotion{ID: req.PromotionID, Name: req.Name}}, nil
}

func newServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	log, _ := test.NewNullLogger()
	srv := httptest.NewServer(web.NewHandler(svc, "http://localhost:3000", log))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, actor, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(web.ActorHeader, actor)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &fakeService{})
	resp, body := do(t, srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	srv = newServer(t, &fakeService{pingErr: errors.New("connection refused")})
	resp, body = do(t, srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["database"])
}

func TestMutationsRequireActor(t *testing.T) {
	srv := newServer(t, &fakeService{})
	resp, body := do(t, srv, http.MethodPost, "/api/orders", "", `{"items":[]}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestCreateOrder(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)
	productID := uuid.New()

	resp, body := do(t, srv, http.MethodPost, "/api/orders", "seller",
		`{"items":[{"product_id":"`+productID.String()+`","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, body["orders"], 1)
	assert.Equal(t, "seller", svc.createOrderReq.Actor)
	require.Len(t, svc.createOrderReq.Items, 1)
	assert.Equal(t, productID, svc.createOrderReq.Items[0].ProductID)
	assert.Equal(t, 2, svc.createOrderReq.Items[0].Quantity)
}

func TestCreateOrder_RequestValidation(t *testing.T) {
	productID := uuid.New().String()
	cases := []struct {
		name  string
		body  string
		field string
		tag   string
	}{
		{"empty order", `{}`, "CreateOrderRequest.items", "order_not_empty"},
		{"zero quantity", `{"items":[{"product_id":"` + productID + `","quantity":0}]}`, "CreateOrderRequest.items[0].quantity", "gt"},
		{"missing product", `{"items":[{"quantity":1}]}`, "CreateOrderRequest.items[0].product_id", "required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			srv := newServer(t, svc)
			resp, body := do(t, srv, http.MethodPost, "/api/orders", "seller", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
			fields, ok := body["fields"].(map[string]any)
			require.True(t, ok, "expected field errors, got %v", body)
			assert.Equal(t, tc.tag, fields[tc.field])
			assert.Empty(t, svc.createOrderReq.Actor, "service must not be called")
		})
	}
}

func TestBadRequests(t *testing.T) {
	srv := newServer(t, &fakeService{})

	resp, body := do(t, srv, http.MethodGet, "/api/orders/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", body["code"])

	resp, body = do(t, srv, http.MethodPost, "/api/orders", "seller", `{"items":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", body["code"])

	resp, _ = do(t, srv, http.MethodGet, "/api/transfers?payment_id=nope", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/promotions?active=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &core.ValidationError{Message: "bad status"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"business", &core.BusinessError{Message: "order is cancelled"}, http.StatusUnprocessableEntity, "BUSINESS_ERROR"},
		{"not found", &core.NotFoundError{Entity: "order", ID: "x"}, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped business", fmt.Errorf("apply: %w", &core.BusinessError{Message: "no"}), http.StatusUnprocessableEntity, "BUSINESS_ERROR"},
		{"concurrent", core.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{"locked", lock.ErrNotObtained, http.StatusConflict, "LOCKED"},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, &fakeService{err: tc.err})
			resp, body := do(t, srv, http.MethodPost, "/api/orders/"+uuid.NewString()+"/status", "seller", `{"status":"COMPLETED"}`)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestCancelPayment_OptionalBody(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)
	paymentID := uuid.New()

	resp, _ := do(t, srv, http.MethodPost, "/api/payments/"+paymentID.String()+"/cancel", "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, paymentID, svc.cancelPaymentReq.PaymentID)
	assert.Empty(t, svc.cancelPaymentReq.Reason)

	resp, _ = do(t, srv, http.MethodPost, "/api/payments/"+paymentID.String()+"/cancel", "admin", `{"reason":"bounced"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bounced", svc.cancelPaymentReq.Reason)
	assert.Equal(t, "admin", svc.cancelPaymentReq.Actor)
}

func TestListTransfers_QuerySelectors(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)
	agentID := uuid.New()

	resp, _ := do(t, srv, http.MethodGet, "/api/transfers?dest_agent_id="+agentID.String(), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.listTransfersReq.DestAgentID)
	assert.Equal(t, agentID, *svc.listTransfersReq.DestAgentID)
	assert.Nil(t, svc.listTransfersReq.PaymentID)
	assert.Nil(t, svc.listTransfersReq.OriginAgentID)
}

func TestListPromotions_ActiveFlag(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)

	resp, _ := do(t, srv, http.MethodGet, "/api/promotions?active=true", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, svc.activeOnly)
}

func TestRemoveOrderItem(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)
	orderID, itemID := uuid.New(), uuid.New()
	path := "/api/orders/" + orderID.String() + "/items/" + itemID.String()

	resp, _ := do(t, srv, http.MethodDelete, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, srv, http.MethodDelete, path, "admin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, app.RemoveOrderItemRequest{Actor: "admin", OrderID: orderID, ItemID: itemID}, svc.removeItemReq)
	assert.NotNil(t, body["order"])

	resp, _ = do(t, srv, http.MethodDelete, "/api/orders/"+orderID.String()+"/items/nope", "admin", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc.err = &core.BusinessError{Message: "agent seller (SELLER) may not change orders"}
	resp, body = do(t, srv, http.MethodDelete, path, "seller", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "BUSINESS_ERROR", body["code"])
}

func TestUpdatePromotion(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc)
	promoID, productID := uuid.New(), uuid.New()
	path := "/api/promotions/" + promoID.String()

	resp, body := do(t, srv, http.MethodPut, path, "owner",
		`{"name":"3 for 240","type":"PACK","buy_quantity":3,"pack_price":"240.00","main_product_id":"`+productID.String()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body %v", body)
	assert.Equal(t, promoID, svc.updatePromoReq.PromotionID)
	assert.Equal(t, "owner", svc.updatePromoReq.Actor)
	assert.Equal(t, productID, svc.updatePromoReq.MainProductID)
	require.NotNil(t, svc.updatePromoReq.PackPrice)
	assert.Equal(t, "240", svc.updatePromoReq.PackPrice.String())

	resp, body = do(t, srv, http.MethodPut, path, "owner", `{"name":"","type":"PACK","buy_quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestSchemas(t *testing.T) {
	srv := newServer(t, &fakeService{})

	resp, body := do(t, srv, http.MethodGet, "/api/schemas", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["schemas"], "create-order")

	resp, body = do(t, srv, http.MethodGet, "/api/schemas/register-payment", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	props, ok := body["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "amount")
	assert.NotContains(t, props, "Actor")

	resp, body = do(t, srv, http.MethodGet, "/api/schemas/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCORS(t *testing.T) {
	srv := newServer(t, &fakeService{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", web.ActorHeader)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newServer(t, &fakeService{})
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-123")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get("X-Request-ID"))
}
