package web

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"sales-ledger/internal/app"
)

// newValidator returns a configured validator with the request-level rules registered.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()

	// report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(createOrderStructValidation, app.CreateOrderRequest{})
	v.RegisterStructValidation(createPromotionStructValidation, app.CreatePromotionRequest{})
	return v
}

// createOrderStructValidation requires something to sell.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(app.CreateOrderRequest)
	if len(req.Items) == 0 && len(req.GiftItems) == 0 && len(req.PromotionIDs) == 0 {
		sl.ReportError(req.Items, "items", "Items", "order_not_empty", "")
	}
}

// createPromotionStructValidation checks the validity window and the gift list.
func createPromotionStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(app.CreatePromotionRequest)
	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidUntil.After(*req.ValidFrom) {
		sl.ReportError(req.ValidUntil, "valid_until", "ValidUntil", "after_valid_from", "")
	}
	if req.Type == "BUY_GET_FREE" && len(req.GiftItems) == 0 {
		sl.ReportError(req.GiftItems, "gift_items", "GiftItems", "required_for_buy_get_free", "")
	}
}

// decodeAndValidate decodes the body into v, validates it and writes a 400 on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	return h.validate(w, r, v)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, v any) bool {
	err := h.validator.Struct(v)
	if err == nil {
		return true
	}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, r, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
		return false
	}
	fields := map[string]string{}
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
	}
	writeErrorResponse(w, r, errorResponse{Error: "validation failed", Code: "VALIDATION_ERROR", Fields: fields}, http.StatusBadRequest)
	return false
}
