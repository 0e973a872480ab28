package web

import (
	"math"
	"net/http"
	"strings"
	"time"

	"bulk-orders/internal/app"
	"bulk-orders/internal/core"
)

// ── Response bodies ───────────────────────────────────────────────────────────
// Money is rendered as a fixed two-decimal string so clients never parse floats.

type coordinatesResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type allocationResponse struct {
	WarehouseID   int64   `json:"warehouse_id"`
	WarehouseName string  `json:"warehouse_name"`
	Quantity      int     `json:"quantity"`
	DistanceKm    float64 `json:"distance_km"`
	ShippingCost  string  `json:"shipping_cost"`
}

type quoteResponse struct {
	Quantity       int                  `json:"quantity"`
	Destination    coordinatesResponse  `json:"destination"`
	BasePrice      string               `json:"base_price"`
	DiscountRate   string               `json:"discount_rate"`
	DiscountAmount string               `json:"discount_amount"`
	TotalPrice     string               `json:"total_price"`
	ShippingCost   string               `json:"shipping_cost"`
	Allocations    []allocationResponse `json:"allocations"`
	Valid          bool                 `json:"valid"`
	InvalidReason  string               `json:"invalid_reason,omitempty"`
}

type orderItemResponse struct {
	WarehouseID   int64  `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Quantity      int    `json:"quantity"`
	ShippingCost  string `json:"shipping_cost"`
}

type orderResponse struct {
	ID             int64               `json:"id"`
	OrderNumber    string              `json:"order_number"`
	Quantity       int                 `json:"quantity"`
	Destination    coordinatesResponse `json:"destination"`
	TotalPrice     string              `json:"total_price"`
	DiscountAmount string              `json:"discount_amount"`
	ShippingCost   string              `json:"shipping_cost"`
	Status         string              `json:"status"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toCoordinates(c core.Coordinates) coordinatesResponse {
	return coordinatesResponse{Latitude: c.Latitude, Longitude: c.Longitude}
}

func toQuoteResponse(q *core.Quote) quoteResponse {
	resp := quoteResponse{
		Quantity:       q.Quantity,
		Destination:    toCoordinates(q.Destination),
		BasePrice:      q.BasePrice.StringFixed(2),
		DiscountRate:   q.DiscountRate.StringFixed(2),
		DiscountAmount: q.DiscountAmount.StringFixed(2),
		TotalPrice:     q.TotalPrice.StringFixed(2),
		ShippingCost:   q.ShippingCost.StringFixed(2),
		Allocations:    make([]allocationResponse, 0, len(q.Lines)),
		Valid:          q.Valid,
		InvalidReason:  q.InvalidReason,
	}
	for _, l := range q.Lines {
		resp.Allocations = append(resp.Allocations, allocationResponse{
			WarehouseID:   l.WarehouseID,
			WarehouseName: l.WarehouseName,
			Quantity:      l.Quantity,
			DistanceKm:    math.Round(l.DistanceKm*1000) / 1000,
			ShippingCost:  l.ShippingCost.StringFixed(2),
		})
	}
	return resp
}

func toOrderResponse(o *core.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Quantity:       o.Quantity,
		Destination:    toCoordinates(o.Destination),
		TotalPrice:     o.TotalPrice.StringFixed(2),
		DiscountAmount: o.DiscountAmount.StringFixed(2),
		ShippingCost:   o.ShippingCost.StringFixed(2),
		Status:         string(o.Status),
		Items:          make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			WarehouseID:   it.WarehouseID,
			WarehouseName: it.WarehouseName,
			Quantity:      it.Quantity,
			ShippingCost:  it.ShippingCost.StringFixed(2),
		})
	}
	return resp
}

// ── API handlers ──────────────────────────────────────────────────────────────

// verifyOrder handles POST /api/orders/verify.
// Body: { quantity, latitude, longitude }
func (h *Handler) verifyOrder(w http.ResponseWriter, r *http.Request) {
	var req app.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.VerifyOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toQuoteResponse(result.Quote))
}

// createOrder handles POST /api/orders.
// Body: { quantity, latitude, longitude }. An Idempotency-Key header makes retries safe.
// Responds 201 for a new order and 200 when replaying an earlier one.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body app.OrderRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 255 {
		writeError(w, r, "Idempotency-Key must be at most 255 characters", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), app.CreateOrderRequest{OrderRequest: body, IdempotencyKey: key})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, toOrderResponse(result.Order))
		return
	}
	w.Header().Set("Location", "/api/orders/"+formatID(result.Order.ID))
	writeJSONStatus(w, http.StatusCreated, toOrderResponse(result.Order))
}

// listOrders handles GET /api/orders?status=&limit=.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListOrders(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(result.Orders))
	for i := range result.Orders {
		out = append(out, toOrderResponse(&result.Orders[i]))
	}
	writeJSON(w, map[string]any{"orders": out})
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toOrderResponse(result.Order))
}

// updateOrderStatus handles PATCH /api/orders/{id}/status.
// Body: { status }
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body app.UpdateStatusRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.UpdateOrderStatus(r.Context(), id, body.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toOrderResponse(result.Order))
}

// deleteOrder handles DELETE /api/orders/{id}.
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
