package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sales-ledger/internal/app"
)

// Handler holds the ApplicationService, the chi router and the request validator.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	validator *validatorv10.Validate
	log       logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log logrus.FieldLogger) http.Handler {
	h := &Handler{
		svc:       svc,
		validator: newValidator(),
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schemas", h.schemaIndex)
	r.Get("/api/schemas/{name}", h.schema)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Queries ──────────────────────────────────────────────────────────
		r.Get("/api/orders", h.apiListOrders)
		r.Get("/api/orders/{id}", h.apiGetOrder)
		r.Get("/api/orders/{id}/discounts", h.apiListDiscounts)
		r.Get("/api/orders/{id}/payments", h.apiListPayments)
		r.Get("/api/payments/{id}/available", h.apiAvailableBalance)
		r.Get("/api/transfers", h.apiListTransfers)
		r.Get("/api/promotions", h.apiListPromotions)
		r.Get("/api/promotions/{id}", h.apiGetPromotion)
		r.Get("/api/products", h.apiListProducts)
		r.Get("/api/products/{id}/movements", h.apiStockMovements)

		// ── Mutations (acting agent required) ────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(RequireActor)

			r.Post("/api/orders", h.apiCreateOrder)
			r.Post("/api/orders/{id}/status", h.apiChangeStatus)
			r.Put("/api/orders/{id}/items", h.apiUpdateOrderItems)
			r.Post("/api/orders/{id}/assortment", h.apiCompleteAssortment)
			r.Post("/api/orders/{id}/annul", h.apiAnnulOrder)
			r.Patch("/api/orders/{id}/items/{itemId}/eta", h.apiUpdateItemETA)
			r.Delete("/api/orders/{id}/items/{itemId}", h.apiRemoveOrderItem)

			r.Post("/api/orders/{id}/discounts", h.apiApplyDiscount)
			r.Post("/api/discounts/{id}/revoke", h.apiRevokeDiscount)

			r.Post("/api/orders/{id}/payments", h.apiRegisterPayment)
			r.Post("/api/payments/{id}/cancel", h.apiCancelPayment)
			r.Post("/api/payments/{id}/restore", h.apiRestorePayment)

			r.Post("/api/payments/{id}/transfers", h.apiCreateTransfer)
			r.Post("/api/transfers/{id}/revoke", h.apiRevokeTransfer)

			r.Post("/api/promotions", h.apiCreatePromotion)
			r.Put("/api/promotions/{id}", h.apiUpdatePromotion)
			r.Post("/api/promotions/{id}/activate", h.apiActivatePromotion)
			r.Post("/api/promotions/{id}/deactivate", h.apiDeactivatePromotion)
		})
	})

	h.router = r
	return r
}

// health reports whether the database is reachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// urlUUID parses the named URL parameter, writing a 400 when it is not a UUID.
func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, "invalid "+name+": must be a UUID", "BAD_REQUEST", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional query parameter. A missing parameter yields nil.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, "invalid "+name+": must be a UUID", "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
