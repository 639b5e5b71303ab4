package handlers

import (
	"net/http"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Readiness consults the
// system service when one is wired; liveness never does.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs probe handlers. A nil system service degrades
// readiness to a plain liveness response.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": domain.HealthStatusOK})
}

// Readyz reports dependency readiness with per-check detail.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.system == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": domain.HealthStatusOK})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  domain.HealthStatusError,
			"message": "health report unavailable",
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{
			"status":     check.Status,
			"latency_ms": check.Latency.Milliseconds(),
		}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		checks[name] = entry
	}

	writeJSON(w, status, map[string]any{
		"status":       report.Status,
		"checks":       checks,
		"version":      report.Version,
		"commit":       report.CommitSHA,
		"environment":  report.Environment,
		"uptime_s":     int64(report.Uptime.Seconds()),
		"generated_at": formatTime(report.GeneratedAt),
	})
}
