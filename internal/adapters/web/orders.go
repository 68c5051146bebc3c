package web

import (
	"net/http"

	"sales-ledger/internal/app"
)

// apiListOrders handles GET /api/orders?status=&vendor_id=.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := queryUUID(w, r, "vendor_id")
	if !ok {
		return
	}
	result, err := h.svc.ListOrders(r.Context(), app.ListOrdersRequest{
		Status:   r.URL.Query().Get("status"),
		VendorID: vendorID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateOrder handles POST /api/orders.
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	req := app.CreateOrderRequest{Actor: actorFromContext(r.Context())}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiChangeStatus handles POST /api/orders/{id}/status.
func (h *Handler) apiChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.ChangeStatusRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.respondOrder(w, r)(h.svc.ChangeOrderStatus(r.Context(), req))
}

// apiUpdateOrderItems handles PUT /api/orders/{id}/items.
func (h *Handler) apiUpdateOrderItems(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.UpdateOrderItemsRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.respondOrder(w, r)(h.svc.UpdateOrderItems(r.Context(), req))
}

// apiCompleteAssortment handles POST /api/orders/{id}/assortment.
func (h *Handler) apiCompleteAssortment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.CompleteAssortmentRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.respondOrder(w, r)(h.svc.CompleteAssortment(r.Context(), req))
}

// apiAnnulOrder handles POST /api/orders/{id}/annul.
func (h *Handler) apiAnnulOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.AnnulOrderRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.respondOrder(w, r)(h.svc.AnnulOrder(r.Context(), req))
}

// apiUpdateItemETA handles PATCH /api/orders/{id}/items/{itemId}/eta.
func (h *Handler) apiUpdateItemETA(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "itemId")
	if !ok {
		return
	}
	req := app.UpdateItemETARequest{Actor: actorFromContext(r.Context()), OrderID: id, ItemID: itemID}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.respondOrder(w, r)(h.svc.UpdateItemETA(r.Context(), req))
}

// apiRemoveOrderItem handles DELETE /api/orders/{id}/items/{itemId}.
func (h *Handler) apiRemoveOrderItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "itemId")
	if !ok {
		return
	}
	h.respondOrder(w, r)(h.svc.RemoveOrderItem(r.Context(), app.RemoveOrderItemRequest{
		Actor: actorFromContext(r.Context()), OrderID: id, ItemID: itemID,
	}))
}

// respondOrder writes the result of an order mutation.
func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request) func(*app.OrderResult, error) {
	return func(result *app.OrderResult, err error) {
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, result)
	}
}
