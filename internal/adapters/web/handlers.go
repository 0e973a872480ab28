package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"bulk-orders/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	log       *slog.Logger
	router    chi.Router
	jwtSecret string
	schemas   map[string]any
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(log *slog.Logger, svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		log:       log,
		jwtSecret: jwtSecret,
		schemas:   buildSchemas(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Tracing)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schema", h.schema)

	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Post("/api/orders/verify", h.verifyOrder)

	r.Get("/api/warehouses", h.listWarehouses)
	r.Get("/api/warehouses/{id}/movements", h.listMovements)

	// ── Mutating routes (bearer token when JWT_SECRET is set) ────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)

		r.Post("/api/orders", h.createOrder)
		r.Patch("/api/orders/{id}/status", h.updateOrderStatus)
		r.Delete("/api/orders/{id}", h.deleteOrder)

		r.Post("/api/warehouses/{id}/receive", h.receiveStock)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Authenticated bool   `json:"authenticated"`
		Subject       string `json:"subject,omitempty"`
		Role          string `json:"role,omitempty"`
	}
	claims := authFromContext(r.Context())
	if claims == nil {
		writeJSON(w, response{})
		return
	}
	writeJSON(w, response{Authenticated: true, Subject: claims.Subject, Role: claims.Role})
}

// pathID parses the {id} URL parameter, writing a 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, fmt.Sprintf("invalid id %q", raw), "INVALID_INPUT", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryLimit reads the optional ?limit= parameter; 0 means the service default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, r, fmt.Sprintf("invalid limit %q", raw), "INVALID_INPUT", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "INVALID_INPUT", http.StatusBadRequest)
		return false
	}
	return true
}
