package web

import (
	"net/http"
	"strconv"

	"sales-ledger/internal/app"
)

// apiListPromotions handles GET /api/promotions?active=true.
func (h *Handler) apiListPromotions(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, "invalid active: must be true or false", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		activeOnly = v
	}
	result, err := h.svc.ListPromotions(r.Context(), activeOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetPromotion handles GET /api/promotions/{id}.
func (h *Handler) apiGetPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetPromotion(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreatePromotion handles POST /api/promotions.
func (h *Handler) apiCreatePromotion(w http.ResponseWriter, r *http.Request) {
	req := app.CreatePromotionRequest{Actor: actorFromContext(r.Context())}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.CreatePromotion(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiUpdatePromotion handles PUT /api/promotions/{id}.
func (h *Handler) apiUpdatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req := app.UpdatePromotionRequest{PromotionID: id}
	req.Actor = actorFromContext(r.Context())
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.UpdatePromotion(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiActivatePromotion handles POST /api/promotions/{id}/activate.
func (h *Handler) apiActivatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ActivatePromotion(r.Context(), app.ActivatePromotionRequest{Actor: actorFromContext(r.Context()), PromotionID: id})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDeactivatePromotion handles POST /api/promotions/{id}/deactivate.
func (h *Handler) apiDeactivatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.DeactivatePromotion(r.Context(), app.DeactivatePromotionRequest{Actor: actorFromContext(r.Context()), PromotionID: id})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListProducts handles GET /api/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiStockMovements handles GET /api/products/{id}/movements.
func (h *Handler) apiStockMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListStockMovements(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
