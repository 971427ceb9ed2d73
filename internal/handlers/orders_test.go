package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

type stubOrderService struct {
	createFn    func(ctx context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error)
	callbackFn  func(ctx context.Context, method services.PaymentMethod, payload []byte, header string) (services.CallbackResult, error)
	markReadyFn func(ctx context.Context, orderID string) (services.Order, error)
	getFn       func(ctx context.Context, orderID string) (services.Order, error)
	historyFn   func(ctx context.Context, userID string, limit int) ([]services.OrderSummary, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error) {
	if s.createFn == nil {
		return services.CreateOrderResult{}, fmt.Errorf("unexpected Create call")
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) HandlePaymentCallback(ctx context.Context, method services.PaymentMethod, payload []byte, header string) (services.CallbackResult, error) {
	if s.callbackFn == nil {
		return services.CallbackResult{}, fmt.Errorf("unexpected HandlePaymentCallback call")
	}
	return s.callbackFn(ctx, method, payload, header)
}

func (s *stubOrderService) MarkReady(ctx context.Context, orderID string) (services.Order, error) {
	if s.markReadyFn == nil {
		return services.Order{}, fmt.Errorf("unexpected MarkReady call")
	}
	return s.markReadyFn(ctx, orderID)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn == nil {
		return services.Order{}, fmt.Errorf("unexpected GetOrder call")
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) ListHistory(ctx context.Context, userID string, limit int) ([]services.OrderSummary, error) {
	if s.historyFn == nil {
		return nil, fmt.Errorf("unexpected ListHistory call")
	}
	return s.historyFn(ctx, userID, limit)
}

type stubUpsellService struct {
	recordFn  func(ctx context.Context, categories []string) error
	suggestFn func(ctx context.Context, cmd services.SuggestCommand) ([]services.Suggestion, error)
}

func (s *stubUpsellService) RecordOrder(ctx context.Context, categories []string) error {
	if s.recordFn == nil {
		return nil
	}
	return s.recordFn(ctx, categories)
}

func (s *stubUpsellService) Suggest(ctx context.Context, cmd services.SuggestCommand) ([]services.Suggestion, error) {
	if s.suggestFn == nil {
		return nil, fmt.Errorf("unexpected Suggest call")
	}
	return s.suggestFn(ctx, cmd)
}

func newOrderHandlersForTest(t *testing.T, orders *stubOrderService, upsell *stubUpsellService) *OrderHandlers {
	t.Helper()
	if orders == nil {
		orders = &stubOrderService{}
	}
	if upsell == nil {
		upsell = &stubUpsellService{}
	}
	h, err := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Upsell: upsell, CreateLimit: -1})
	if err != nil {
		t.Fatalf("NewOrderHandlers: %v", err)
	}
	return h
}

func newOrderRouter(t *testing.T, h *OrderHandlers) http.Handler {
	t.Helper()
	return NewRouter(WithOrderRoutes(h.Register))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestCreateOrderReturnsRedirectArtifact(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error) {
			captured = cmd
			return services.CreateOrderResult{
				OrderID:          "ord_1",
				OrderNumber:      10,
				Status:           services.OrderStatus("pending"),
				PaymentSessionID: "ps_1",
				Amount:           25,
				CheckoutURL:      "https://checkout.test/session",
			}, nil
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

	payload := `{"userId":"chat-7","storeId":"store_barkarby","paymentMethod":"card","items":[{"itemId":"hotdog_classic","quantity":2},{"itemId":"fries_small","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "chat-7" || captured.StoreID != "store_barkarby" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if len(captured.Items) != 2 || captured.Items[0].ItemID != "hotdog_classic" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart lines %+v", captured.Items)
	}

	body := decodeBody(t, rec)
	if body["orderId"] != "ord_1" || body["orderNumber"] != float64(10) || body["status"] != "pending" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["checkoutUrl"] != "https://checkout.test/session" {
		t.Fatalf("expected checkout url, got %v", body)
	}
	if _, ok := body["swishUrl"]; ok {
		t.Fatalf("swish url should be omitted, got %v", body)
	}
}

func TestCreateOrderMapsValidationErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", fmt.Errorf("%w: cart is empty", services.ErrOrderInvalidInput), http.StatusBadRequest, "invalid_order"},
		{"unknown store", services.ErrInvalidStore, http.StatusBadRequest, "invalid_store"},
		{"unsupported method", payments.ErrUnsupportedMethod, http.StatusBadRequest, "unsupported_payment_method"},
		{"unconfigured provider", payments.ErrProviderUnconfigured, http.StatusBadRequest, "provider_unconfigured"},
		{"provider outage", payments.ErrProviderRequestFailed, http.StatusInternalServerError, "provider_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{
				createFn: func(context.Context, services.CreateOrderCommand) (services.CreateOrderResult, error) {
					return services.CreateOrderResult{}, tc.err
				},
			}
			router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{"userId":"chat-7"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["error"] != tc.wantCode {
				t.Fatalf("expected code %q, got %v", tc.wantCode, body)
			}
		})
	}
}

func TestCreateOrderHidesStorageDetail(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.CreateOrderResult, error) {
			return services.CreateOrderResult{}, fmt.Errorf("persist order: firestore orders.create: rpc error: code = Unavailable")
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{"userId":"chat-7"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "internal_error" {
		t.Fatalf("expected code internal_error, got %v", body)
	}
	if msg, _ := body["message"].(string); msg != "order operation failed" {
		t.Fatalf("expected generic message, got %q", msg)
	}
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	router := newOrderRouter(t, newOrderHandlersForTest(t, nil, nil))

	for name, payload := range map[string]string{
		"empty":        "   ",
		"invalid json": "{not json",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateOrderRateLimitsPerUser(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.CreateOrderResult, error) {
			return services.CreateOrderResult{OrderID: "ord_1", Status: "pending"}, nil
		},
	}
	h, err := NewOrderHandlers(OrderHandlersDeps{Orders: orders, Upsell: &stubUpsellService{}, CreateLimit: 2, CreateWindow: time.Minute})
	if err != nil {
		t.Fatalf("NewOrderHandlers: %v", err)
	}
	router := newOrderRouter(t, h)

	send := func(userID string) int {
		payload := fmt.Sprintf(`{"userId":%q,"storeId":"store_barkarby","paymentMethod":"card","items":[{"itemId":"hotdog_classic","quantity":1}]}`, userID)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("chat-7"); code != http.StatusCreated {
		t.Fatalf("first request expected 201, got %d", code)
	}
	if code := send("chat-7"); code != http.StatusCreated {
		t.Fatalf("second request expected 201, got %d", code)
	}
	if code := send("chat-7"); code != http.StatusTooManyRequests {
		t.Fatalf("third request expected 429, got %d", code)
	}
	if code := send("chat-8"); code != http.StatusCreated {
		t.Fatalf("other user expected 201, got %d", code)
	}
}

func TestGetOrderMapsNotFound(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["error"] != "order_not_found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestGetOrderReturnsFullOrder(t *testing.T) {
	created := time.Date(2026, 3, 4, 11, 30, 0, 0, time.UTC)
	orders := &stubOrderService{
		getFn: func(_ context.Context, orderID string) (services.Order, error) {
			if orderID != "ord_1" {
				return services.Order{}, services.ErrOrderNotFound
			}
			return services.Order{
				ID:            "ord_1",
				Number:        12,
				UserID:        "chat-7",
				StoreID:       "store_barkarby",
				Items:         []services.LineItem{{ItemID: "hotdog_classic", Name: "Classic Hot Dog", Category: "hotdogs", Quantity: 2, UnitPrice: 5}},
				TotalPrice:    10,
				PaymentMethod: "card",
				Status:        "confirmed",
				CreatedAt:     created,
				UpdatedAt:     created,
			}, nil
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["orderNumber"] != float64(12) || body["status"] != "confirmed" || body["totalPrice"] != float64(10) {
		t.Fatalf("unexpected body %v", body)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one line item, got %v", body["items"])
	}
}

func TestHistoryRequiresUserID(t *testing.T) {
	router := newOrderRouter(t, newOrderHandlersForTest(t, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryPassesLimitThrough(t *testing.T) {
	var gotUser string
	var gotLimit int
	orders := &stubOrderService{
		historyFn: func(_ context.Context, userID string, limit int) ([]services.OrderSummary, error) {
			gotUser = userID
			gotLimit = limit
			return []services.OrderSummary{{
				OrderID:     "ord_2",
				OrderNumber: 11,
				Status:      "ready",
				TotalPrice:  25,
				StoreID:     "store_barkarby",
				StoreName:   "Barkarby",
			}}, nil
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, orders, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/?userId=chat-7&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if gotUser != "chat-7" || gotLimit != 5 {
		t.Fatalf("unexpected history args user=%q limit=%d", gotUser, gotLimit)
	}
	body := decodeBody(t, rec)
	rows, ok := body["orders"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected one history row, got %v", body)
	}
	row := rows[0].(map[string]any)
	if row["storeName"] != "Barkarby" {
		t.Fatalf("expected denormalised store name, got %v", row)
	}
}

func TestSuggestionsRanksByScore(t *testing.T) {
	var captured services.SuggestCommand
	upsell := &stubUpsellService{
		suggestFn: func(_ context.Context, cmd services.SuggestCommand) ([]services.Suggestion, error) {
			captured = cmd
			return []services.Suggestion{{Category: "sides", Score: 30}, {Category: "drinks", Score: 12}}, nil
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, nil, upsell))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/suggestions?items=hotdog_classic,fries_small&limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if len(captured.Items) != 2 || captured.Limit != 2 {
		t.Fatalf("unexpected command %+v", captured)
	}
	body := decodeBody(t, rec)
	suggestions, ok := body["suggestions"].([]any)
	if !ok || len(suggestions) != 2 {
		t.Fatalf("expected two suggestions, got %v", body)
	}
	first := suggestions[0].(map[string]any)
	if first["category"] != "sides" || first["score"] != float64(30) {
		t.Fatalf("unexpected first suggestion %v", first)
	}
}

func TestSuggestionsRejectMissingItems(t *testing.T) {
	router := newOrderRouter(t, newOrderHandlersForTest(t, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/suggestions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSuggestionsMapInvalidInput(t *testing.T) {
	upsell := &stubUpsellService{
		suggestFn: func(context.Context, services.SuggestCommand) ([]services.Suggestion, error) {
			return nil, fmt.Errorf("%w: unknown item", services.ErrUpsellInvalidInput)
		},
	}
	router := newOrderRouter(t, newOrderHandlersForTest(t, nil, upsell))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/suggestions?items=surströmming", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["error"] != "invalid_suggestion_request" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestNewOrderHandlersRequiresServices(t *testing.T) {
	if _, err := NewOrderHandlers(OrderHandlersDeps{Upsell: &stubUpsellService{}}); err == nil {
		t.Fatal("expected error without order service")
	}
	if _, err := NewOrderHandlers(OrderHandlersDeps{Orders: &stubOrderService{}}); err == nil {
		t.Fatal("expected error without upsell service")
	}
}
