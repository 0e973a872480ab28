package web

import (
	"net/http"

	"bulk-orders/internal/app"

	"github.com/invopop/jsonschema"
)

// buildSchemas reflects the request and response bodies once at startup.
func buildSchemas() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return map[string]any{
		"verify_order_request":  reflector.Reflect(&app.OrderRequest{}),
		"create_order_request":  reflector.Reflect(&app.OrderRequest{}),
		"update_status_request": reflector.Reflect(&app.UpdateStatusRequest{}),
		"receive_stock_request": reflector.Reflect(&app.ReceiveStockRequest{}),
		"quote":                 reflector.Reflect(&quoteResponse{}),
		"order":                 reflector.Reflect(&orderResponse{}),
		"warehouse":             reflector.Reflect(&warehouseResponse{}),
	}
}

// schema handles GET /api/schema.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.schemas)
}
