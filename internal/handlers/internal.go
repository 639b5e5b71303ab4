package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bloomfield/api/internal/services"
)

// InternalHandlers serves service-to-service endpoints. The router mounts
// them behind HMAC request signing rather than Firebase auth.
type InternalHandlers struct {
	system services.SystemService
}

// NewInternalHandlers constructs internal endpoints.
func NewInternalHandlers(system services.SystemService) *InternalHandlers {
	return &InternalHandlers{system: system}
}

// Routes registers internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	r.Post("/counters/{counterID}/next", h.nextCounterValue)
}

func (h *InternalHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Step int64 `json:"step"`
	}{}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeInvalidBody(r.Context(), w, err)
			return
		}
	}

	value, err := h.system.NextCounterValue(r.Context(), services.CounterCommand{
		CounterID: chi.URLParam(r, "counterID"),
		Step:      body.Step,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counter_id": chi.URLParam(r, "counterID"),
		"value":      value,
	})
}
