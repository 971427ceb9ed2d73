package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/httpx"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

const (
	maxOrderBodyBytes   = 64 * 1024
	defaultCreateLimit  = 10
	defaultCreateWindow = time.Minute
)

// OrderHandlers serves order creation, lookup, history, and upsell suggestions.
type OrderHandlers struct {
	orders  services.OrderService
	upsell  services.UpsellService
	limiter rateLimiter
}

// OrderHandlersDeps wires required services into the handlers.
type OrderHandlersDeps struct {
	Orders services.OrderService
	Upsell services.UpsellService

	// CreateLimit and CreateWindow bound order creation per user. Zero values
	// fall back to the defaults; a negative limit disables limiting.
	CreateLimit  int
	CreateWindow time.Duration
	Clock        func() time.Time
}

// NewOrderHandlers validates dependencies and constructs the handlers.
func NewOrderHandlers(deps OrderHandlersDeps) (*OrderHandlers, error) {
	if deps.Orders == nil {
		return nil, errors.New("handlers: order service is required")
	}
	if deps.Upsell == nil {
		return nil, errors.New("handlers: upsell service is required")
	}

	limit := deps.CreateLimit
	if limit == 0 {
		limit = defaultCreateLimit
	}
	window := deps.CreateWindow
	if window == 0 {
		window = defaultCreateWindow
	}

	return &OrderHandlers{
		orders:  deps.Orders,
		upsell:  deps.Upsell,
		limiter: newSimpleRateLimiter(limit, window, deps.Clock),
	}, nil
}

// Register mounts the order routes on the provided router.
func (h *OrderHandlers) Register(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.history)
	r.Get("/suggestions", h.suggestions)
	r.Get("/{orderID}", h.get)
}

type cartLinePayload struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type createOrderPayload struct {
	UserID        string            `json:"userId"`
	StoreID       string            `json:"storeId"`
	PaymentMethod string            `json:"paymentMethod"`
	Items         []cartLinePayload `json:"items"`
}

type createOrderResponse struct {
	OrderID          string `json:"orderId"`
	OrderNumber      int64  `json:"orderNumber"`
	Status           string `json:"status"`
	PaymentSessionID string `json:"paymentSessionId"`
	Amount           int64  `json:"amount"`
	CheckoutURL      string `json:"checkoutUrl,omitempty"`
	SwishURL         string `json:"swishUrl,omitempty"`
	ClientSecret     string `json:"clientSecret,omitempty"`
}

func (h *OrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	body, err := readLimitedBody(r, maxOrderBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var payload createOrderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	userID := strings.TrimSpace(payload.UserID)
	if h.limiter != nil && !h.limiter.Allow(userID) {
		httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many orders, slow down", http.StatusTooManyRequests))
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:        userID,
		StoreID:       payload.StoreID,
		PaymentMethod: services.PaymentMethod(strings.TrimSpace(payload.PaymentMethod)),
	}
	for _, line := range payload.Items {
		cmd.Items = append(cmd.Items, services.CartLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}

	result, err := h.orders.Create(r.Context(), cmd)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, createOrderResponse{
		OrderID:          result.OrderID,
		OrderNumber:      result.OrderNumber,
		Status:           string(result.Status),
		PaymentSessionID: result.PaymentSessionID,
		Amount:           result.Amount,
		CheckoutURL:      result.CheckoutURL,
		SwishURL:         result.SwishURL,
		ClientSecret:     result.ClientSecret,
	})
}

type orderLinePayload struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type orderResponse struct {
	OrderID          string             `json:"orderId"`
	OrderNumber      int64              `json:"orderNumber"`
	UserID           string             `json:"userId"`
	StoreID          string             `json:"storeId"`
	Items            []orderLinePayload `json:"items"`
	TotalPrice       int64              `json:"totalPrice"`
	PaymentMethod    string             `json:"paymentMethod"`
	Status           string             `json:"status"`
	PaymentSessionID string             `json:"paymentSessionId,omitempty"`
	ReceiptSent      bool               `json:"receiptSent"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_order_id", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order services.Order) orderResponse {
	resp := orderResponse{
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		UserID:           order.UserID,
		StoreID:          order.StoreID,
		TotalPrice:       order.TotalPrice,
		PaymentMethod:    string(order.PaymentMethod),
		Status:           string(order.Status),
		PaymentSessionID: order.PaymentSessionID,
		ReceiptSent:      order.ReceiptSent,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderLinePayload{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return resp
}

type historyEntryResponse struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   int64     `json:"orderNumber"`
	Status        string    `json:"status"`
	TotalPrice    int64     `json:"totalPrice"`
	PaymentMethod string    `json:"paymentMethod"`
	StoreID       string    `json:"storeId"`
	StoreName     string    `json:"storeName"`
	ReceiptSent   bool      `json:"receiptSent"`
	CreatedAt     time.Time `json:"createdAt"`
}

type historyResponse struct {
	Orders []historyEntryResponse `json:"orders"`
}

func (h *OrderHandlers) history(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_user_id", "userId query parameter is required", http.StatusBadRequest))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_limit", "limit must be an integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	summaries, err := h.orders.ListHistory(r.Context(), userID, limit)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	resp := historyResponse{Orders: make([]historyEntryResponse, 0, len(summaries))}
	for _, summary := range summaries {
		resp.Orders = append(resp.Orders, historyEntryResponse{
			OrderID:       summary.OrderID,
			OrderNumber:   summary.OrderNumber,
			Status:        string(summary.Status),
			TotalPrice:    summary.TotalPrice,
			PaymentMethod: string(summary.PaymentMethod),
			StoreID:       summary.StoreID,
			StoreName:     summary.StoreName,
			ReceiptSent:   summary.ReceiptSent,
			CreatedAt:     summary.CreatedAt,
		})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

type suggestionResponse struct {
	Category string `json:"category"`
	Score    int64  `json:"score"`
}

type suggestionsResponse struct {
	Suggestions []suggestionResponse `json:"suggestions"`
}

func (h *OrderHandlers) suggestions(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("items"))
	if raw == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_items", "items query parameter is required", http.StatusBadRequest))
		return
	}

	cmd := services.SuggestCommand{}
	for _, itemID := range strings.Split(raw, ",") {
		itemID = strings.TrimSpace(itemID)
		if itemID == "" {
			continue
		}
		cmd.Items = append(cmd.Items, services.CartLine{ItemID: itemID, Quantity: 1})
	}

	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_limit", "limit must be an integer", http.StatusBadRequest))
			return
		}
		cmd.Limit = parsed
	}

	suggestions, err := h.upsell.Suggest(r.Context(), cmd)
	if err != nil {
		writeSuggestError(w, r, err)
		return
	}

	resp := suggestionsResponse{Suggestions: make([]suggestionResponse, 0, len(suggestions))}
	for _, s := range suggestions {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{Category: s.Category, Score: s.Score})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(r.Context(), w, httpx.NewError("body_too_large", "request body exceeds the allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(r.Context(), w, httpx.NewError("empty_body", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body could not be read", http.StatusBadRequest))
	}
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_order", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidStore):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_store", "store is unknown", http.StatusBadRequest))
	case errors.Is(err, payments.ErrUnsupportedMethod):
		httpx.WriteError(r.Context(), w, httpx.NewError("unsupported_payment_method", "payment method is not supported", http.StatusBadRequest))
	case errors.Is(err, payments.ErrProviderUnconfigured):
		httpx.WriteError(r.Context(), w, httpx.NewError("provider_unconfigured", "payment provider is not configured", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, payments.ErrProviderRequestFailed):
		httpx.WriteError(r.Context(), w, httpx.NewError("provider_unavailable", "payment provider request failed", http.StatusInternalServerError))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "order operation failed", http.StatusInternalServerError))
	}
}

func writeSuggestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUpsellInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_suggestion_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "suggestion lookup failed", http.StatusInternalServerError))
	}
}
