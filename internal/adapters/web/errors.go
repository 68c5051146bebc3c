package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"sales-ledger/internal/core"
	"sales-ledger/internal/lock"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a service error to its HTTP status:
// validation 400, not found 404, business 422, conflicts 409, anything else 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch kind := core.KindOf(err); kind {
	case core.KindValidation:
		writeError(w, r, err.Error(), string(kind), http.StatusBadRequest)
		return
	case core.KindNotFound:
		writeError(w, r, err.Error(), string(kind), http.StatusNotFound)
		return
	case core.KindBusiness:
		writeError(w, r, err.Error(), string(kind), http.StatusUnprocessableEntity)
		return
	}

	switch {
	case errors.Is(err, core.ErrConcurrentModification):
		writeError(w, r, "the resource was modified concurrently, retry the request", "CONCURRENT_MODIFICATION", http.StatusConflict)
	case errors.Is(err, lock.ErrNotObtained):
		writeError(w, r, "the resource is busy, retry the request", "LOCKED", http.StatusConflict)
	default:
		h.log.WithFields(logrus.Fields{
			"request_id": requestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
