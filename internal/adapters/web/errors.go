package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bulk-orders/internal/app"
	"bulk-orders/internal/core"
)

// retryAfterSeconds is advertised on 503 responses caused by lock contention.
const retryAfterSeconds = 1

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
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

// writeServiceError maps an application error onto its HTTP status and body.
// Unrecognised errors are logged and reported as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *core.InsufficientStockError
		exceeded     *core.ShippingCostExceededError
		changed      *core.StockChangedError
	)
	switch {
	case errors.As(err, &insufficient):
		writeErrorDetails(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict, map[string]int{
			"requested": insufficient.Requested,
			"available": insufficient.Available,
			"shortfall": insufficient.Shortfall,
		})
	case errors.As(err, &exceeded):
		writeErrorDetails(w, r, err.Error(), "SHIPPING_COST_EXCEEDED", http.StatusUnprocessableEntity, map[string]string{
			"shipping_cost": exceeded.ShippingCost.StringFixed(2),
			"cap":           exceeded.Cap.StringFixed(2),
			"total_price":   exceeded.TotalPrice.StringFixed(2),
		})
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, r, err.Error(), "INVALID_INPUT", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, app.ErrRequestInFlight):
		writeError(w, r, err.Error(), "REQUEST_IN_FLIGHT", http.StatusConflict)
	case errors.As(err, &changed), errors.Is(err, core.ErrStockChanged):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, r, "stock changed while the order was being committed, please retry", "STOCK_CHANGED", http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrLockTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, r, "inventory is busy, please retry", "LOCK_TIMEOUT", http.StatusServiceUnavailable)
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
