package web

import (
	"net/http"
	"reflect"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"sales-ledger/internal/app"
)

// requestSchemas are the request bodies published at /api/schemas/{name}.
var requestSchemas = map[string]any{
	"create-order":        app.CreateOrderRequest{},
	"change-status":       app.ChangeStatusRequest{},
	"update-order-items":  app.UpdateOrderItemsRequest{},
	"complete-assortment": app.CompleteAssortmentRequest{},
	"annul-order":         app.AnnulOrderRequest{},
	"update-item-eta":     app.UpdateItemETARequest{},
	"apply-discount":      app.ApplyDiscountRequest{},
	"register-payment":    app.RegisterPaymentRequest{},
	"cancel-payment":      app.CancelPaymentRequest{},
	"create-transfer":     app.CreateTransferRequest{},
	"revoke-transfer":     app.RevokeTransferRequest{},
	"create-promotion":    app.CreatePromotionRequest{},
	"update-promotion":    app.UpdatePromotionRequest{},
}

var (
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

func generateSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case uuidType:
				return &jsonschema.Schema{Type: "string", Format: "uuid"}
			case decimalType:
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	return reflector.Reflect(v)
}

// schema handles GET /api/schemas/{name}.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := requestSchemas[name]
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, generateSchema(v))
}

// schemaIndex handles GET /api/schemas.
func (h *Handler) schemaIndex(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(requestSchemas))
	for name := range requestSchemas {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, map[string][]string{"schemas": names})
}
