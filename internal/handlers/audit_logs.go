package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// AuditLogHandlers exposes the immutable audit trail to staff.
type AuditLogHandlers struct {
	audit services.AuditLogService
}

// NewAuditLogHandlers constructs audit log endpoints.
func NewAuditLogHandlers(audit services.AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{audit: audit}
}

// AdminRoutes registers audit log endpoints on an admin-scoped router.
func (h *AuditLogHandlers) AdminRoutes(r chi.Router) {
	r.Get("/audit-logs", h.list)
}

func (h *AuditLogHandlers) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.audit.List(r.Context(), services.AuditLogFilter{
		TargetRef:  strings.TrimSpace(query.Get("target_ref")),
		Actor:      strings.TrimSpace(query.Get("actor")),
		Action:     strings.TrimSpace(query.Get("action")),
		Pagination: pager,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildAuditEntryPayload))
}

type auditEntryPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actor_type"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Severity  string         `json:"severity"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func buildAuditEntryPayload(entry domain.AuditLogEntry) auditEntryPayload {
	return auditEntryPayload{
		ID:        entry.ID,
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Metadata:  entry.Metadata,
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		CreatedAt: formatTime(entry.CreatedAt),
	}
}
