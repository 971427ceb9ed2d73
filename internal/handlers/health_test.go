package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

type stubSystemService struct {
	reportFn func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn == nil {
		return services.SystemHealthReport{}, fmt.Errorf("unexpected HealthReport call")
	}
	return s.reportFn(ctx)
}

func TestHealthzReportsBuildMetadata(t *testing.T) {
	started := time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Second)

	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.4.0",
			CommitSHA:   "abc1234",
			Environment: "production",
			StartedAt:   started,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "1.4.0" || body["commitSha"] != "abc1234" || body["environment"] != "production" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["uptime"] != "1m30s" {
		t.Fatalf("unexpected uptime %v", body["uptime"])
	}
}

func TestReadyzWithoutSystemServiceIsReady(t *testing.T) {
	h := NewHealthHandlers()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyzReportsDependencyChecks(t *testing.T) {
	now := time.Date(2026, 3, 4, 11, 30, 0, 0, time.UTC)
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
				},
				GeneratedAt: now,
			}, nil
		},
	}

	h := NewHealthHandlers(WithHealthSystemService(system))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks map, got %v", body)
	}
	firestore, ok := checks["firestore"].(map[string]any)
	if !ok || firestore["status"] != "ok" || firestore["latencyMs"] != float64(12) {
		t.Fatalf("unexpected firestore check %v", checks)
	}
}

func TestReadyzDegradedReturns503(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
				},
			}, nil
		},
	}

	h := NewHealthHandlers(WithHealthSystemService(system))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyzReportErrorReturns503(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{}, fmt.Errorf("probe failed")
		},
	}

	h := NewHealthHandlers(WithHealthSystemService(system))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
