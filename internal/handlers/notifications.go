package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// NotificationHandlers serves storefront announcements. The public surface
// only exposes active announcements targeted at everyone; signed-in reads and
// staff management live behind auth groups.
type NotificationHandlers struct {
	notifications services.NotificationService
}

// NewNotificationHandlers constructs notification endpoints.
func NewNotificationHandlers(notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

// PublicRoutes registers the unauthenticated announcement feed.
func (h *NotificationHandlers) PublicRoutes(r chi.Router) {
	r.Get("/notifications", h.listPublic)
}

// CustomerRoutes registers the signed-in announcement feed.
func (h *NotificationHandlers) CustomerRoutes(r chi.Router) {
	r.Get("/", h.listForCustomer)
}

// AdminRoutes registers staff announcement management endpoints.
func (h *NotificationHandlers) AdminRoutes(r chi.Router) {
	r.Get("/notifications", h.adminList)
	r.Post("/notifications", h.adminCreate)
	r.Get("/notifications/{notificationID}", h.adminGet)
	r.Put("/notifications/{notificationID}", h.adminUpdate)
}

func (h *NotificationHandlers) listPublic(w http.ResponseWriter, r *http.Request) {
	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.notifications.ListNotifications(r.Context(), services.ListNotificationsCommand{
		ActiveOnly: true,
		Targets:    []domain.NotificationTarget{domain.NotificationTargetAll},
		Pagination: pager,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildNotificationPayload))
}

func (h *NotificationHandlers) listForCustomer(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.notifications.ListNotifications(r.Context(), services.ListNotificationsCommand{
		ActiveOnly: true,
		Targets:    []domain.NotificationTarget{domain.NotificationTargetAll, domain.NotificationTargetCustomer},
		Pagination: pager,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildNotificationPayload))
}

func (h *NotificationHandlers) adminList(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.notifications.ListNotifications(r.Context(), services.ListNotificationsCommand{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Pagination: pager,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildNotificationPayload))
}

type notificationRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Target   string `json:"target"`
	IsActive bool   `json:"is_active"`
}

func (h *NotificationHandlers) adminCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body notificationRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	notification, err := h.notifications.CreateNotification(r.Context(), services.UpsertNotificationCommand{
		Title:    body.Title,
		Message:  body.Message,
		Type:     domain.NotificationType(body.Type),
		Target:   domain.NotificationTarget(body.Target),
		IsActive: body.IsActive,
		ActorID:  identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildNotificationPayload(notification))
}

func (h *NotificationHandlers) adminGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	notification, err := h.notifications.GetNotification(r.Context(), chi.URLParam(r, "notificationID"))
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildNotificationPayload(notification))
}

func (h *NotificationHandlers) adminUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body notificationRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	notification, err := h.notifications.UpdateNotification(r.Context(), services.UpsertNotificationCommand{
		NotificationID: chi.URLParam(r, "notificationID"),
		Title:          body.Title,
		Message:        body.Message,
		Type:           domain.NotificationType(body.Type),
		Target:         domain.NotificationTarget(body.Target),
		IsActive:       body.IsActive,
		ActorID:        identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildNotificationPayload(notification))
}

type notificationPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Target    string `json:"target"`
	IsActive  bool   `json:"is_active"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func buildNotificationPayload(notification domain.Notification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      string(notification.Type),
		Target:    string(notification.Target),
		IsActive:  notification.IsActive,
		CreatedBy: notification.CreatedBy,
		CreatedAt: formatTime(notification.CreatedAt),
		UpdatedAt: formatTime(notification.UpdatedAt),
	}
}
