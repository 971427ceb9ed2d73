package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/httpx"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

// InternalHandlers serves operator tooling endpoints. The group is expected to
// be mounted behind the HMAC validator middleware.
type InternalHandlers struct {
	orders services.OrderService
}

// NewInternalHandlers validates dependencies and constructs the handlers.
func NewInternalHandlers(orders services.OrderService) (*InternalHandlers, error) {
	if orders == nil {
		return nil, errors.New("handlers: order service is required")
	}
	return &InternalHandlers{orders: orders}, nil
}

// Register mounts the internal routes on the provided router.
func (h *InternalHandlers) Register(r chi.Router) {
	r.Post("/orders/{orderID}/ready", h.markReady)
}

type markReadyResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (h *InternalHandlers) markReady(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_order_id", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.MarkReady(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, markReadyResponse{OrderID: order.ID, Status: string(order.Status)})
}
