package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sales-ledger/internal/app"
)

// ── Discounts ────────────────────────────────────────────────────────────────

// apiApplyDiscount handles POST /api/orders/{id}/discounts.
func (h *Handler) apiApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.ApplyDiscountRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.ApplyDiscount(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiRevokeDiscount handles POST /api/discounts/{id}/revoke.
func (h *Handler) apiRevokeDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.RevokeDiscount(r.Context(), app.RevokeDiscountRequest{Actor: actorFromContext(r.Context()), DiscountID: id})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListDiscounts handles GET /api/orders/{id}/discounts.
func (h *Handler) apiListDiscounts(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListDiscounts(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Payments ─────────────────────────────────────────────────────────────────

// apiRegisterPayment handles POST /api/orders/{id}/payments.
func (h *Handler) apiRegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.RegisterPaymentRequest{Actor: actorFromContext(r.Context()), OrderID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.RegisterPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiCancelPayment handles POST /api/payments/{id}/cancel. The body is optional.
func (h *Handler) apiCancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.CancelPaymentRequest{Actor: actorFromContext(r.Context()), PaymentID: id}
	if !decodeOptionalJSON(w, r, &req) || !h.validate(w, r, &req) {
		return
	}
	result, err := h.svc.CancelPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRestorePayment handles POST /api/payments/{id}/restore.
func (h *Handler) apiRestorePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.RestorePayment(r.Context(), app.RestorePaymentRequest{Actor: actorFromContext(r.Context()), PaymentID: id})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListPayments handles GET /api/orders/{id}/payments.
func (h *Handler) apiListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListPayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Transfers ────────────────────────────────────────────────────────────────

// apiCreateTransfer handles POST /api/payments/{id}/transfers.
func (h *Handler) apiCreateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.CreateTransferRequest{Actor: actorFromContext(r.Context()), PaymentID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.CreateTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiRevokeTransfer handles POST /api/transfers/{id}/revoke.
func (h *Handler) apiRevokeTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.RevokeTransferRequest{Actor: actorFromContext(r.Context()), TransferID: id}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.RevokeTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListTransfers handles GET /api/transfers?payment_id=|origin_agent_id=|dest_agent_id=.
func (h *Handler) apiListTransfers(w http.ResponseWriter, r *http.Request) {
	var req app.ListTransfersRequest
	var ok bool
	if req.PaymentID, ok = queryUUID(w, r, "payment_id"); !ok {
		return
	}
	if req.OriginAgentID, ok = queryUUID(w, r, "origin_agent_id"); !ok {
		return
	}
	if req.DestAgentID, ok = queryUUID(w, r, "dest_agent_id"); !ok {
		return
	}
	result, err := h.svc.ListTransfers(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAvailableBalance handles GET /api/payments/{id}/available.
func (h *Handler) apiAvailableBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetAvailableBalance(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
}
