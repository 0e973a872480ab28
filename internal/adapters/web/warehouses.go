package web

import (
	"net/http"
	"strconv"
	"time"

	"bulk-orders/internal/app"
	"bulk-orders/internal/core"
)

type warehouseResponse struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	Location  coordinatesResponse `json:"location"`
	Stock     int                 `json:"stock"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type movementResponse struct {
	ID           int64     `json:"id"`
	MovementType string    `json:"movement_type"`
	Quantity     int       `json:"quantity"`
	OrderID      *int64    `json:"order_id,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toWarehouseResponse(wh *core.Warehouse) warehouseResponse {
	return warehouseResponse{
		ID:        wh.ID,
		Name:      wh.Name,
		Location:  toCoordinates(wh.Location),
		Stock:     wh.Stock,
		UpdatedAt: wh.UpdatedAt,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// listWarehouses handles GET /api/warehouses.
func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]warehouseResponse, 0, len(result.Warehouses))
	for i := range result.Warehouses {
		out = append(out, toWarehouseResponse(&result.Warehouses[i]))
	}
	writeJSON(w, map[string]any{"warehouses": out})
}

// receiveStock handles POST /api/warehouses/{id}/receive.
// Body: { quantity, notes? }
func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body app.ReceiveStockRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.WarehouseID = id

	result, err := h.svc.ReceiveStock(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, toWarehouseResponse(result.Warehouse))
}

// listMovements handles GET /api/warehouses/{id}/movements?limit=.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListMovements(r.Context(), id, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]movementResponse, 0, len(result.Movements))
	for _, m := range result.Movements {
		out = append(out, movementResponse{
			ID:           m.ID,
			MovementType: string(m.MovementType),
			Quantity:     m.Quantity,
			OrderID:      m.OrderID,
			Notes:        m.Notes,
			CreatedAt:    m.CreatedAt,
		})
	}
	writeJSON(w, map[string]any{"warehouse_id": id, "movements": out})
}
