package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != domain.HealthStatusOK {
		t.Fatalf("unexpected status: %v", body["status"])
	}
}

func TestReadyzReportsChecks(t *testing.T) {
	system := &stubSystemService{
		healthReport: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
					"pubsub":    {Status: domain.HealthStatusDegraded, Error: "publish timeout"},
				},
				Version:     "1.4.2",
				Environment: "staging",
				Uptime:      90 * time.Second,
				GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	h := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("degraded should still be ready, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != domain.HealthStatusDegraded {
		t.Fatalf("unexpected status: %v", body["status"])
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok || len(checks) != 2 {
		t.Fatalf("expected two checks, got %v", body["checks"])
	}
	pubsub, _ := checks["pubsub"].(map[string]any)
	if pubsub["error"] != "publish timeout" {
		t.Fatalf("check error missing: %v", pubsub)
	}
	if body["uptime_s"] != float64(90) {
		t.Fatalf("unexpected uptime: %v", body["uptime_s"])
	}
}

func TestReadyzErrorStatusIsUnavailable(t *testing.T) {
	system := &stubSystemService{
		healthReport: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	h := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestReadyzReportFailure(t *testing.T) {
	system := &stubSystemService{
		healthReport: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("probe failed")
		},
	}
	h := NewHealthHandlers(system)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != domain.HealthStatusError {
		t.Fatalf("unexpected status: %v", body["status"])
	}
}

func TestReadyzWithoutSystemService(t *testing.T) {
	h := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
