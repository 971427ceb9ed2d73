package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterServesHealthEndpointsAtRoot(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRouterUnknownRouteReturnsJSONEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "route_not_found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRouterMethodNotAllowedEnvelope(t *testing.T) {
	h := newOrderHandlersForTest(t, &stubOrderService{}, nil)
	router := NewRouter(WithOrderRoutes(h.Register))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d body %s", rec.Code, rec.Body.String())
	}
}
