package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/httpx"
	"github.com/bloomfield/api/internal/services"
)

// DeliveryHandlers serves courier record reads for customers and the full
// lifecycle for staff.
type DeliveryHandlers struct {
	deliveries services.DeliveryService
}

// NewDeliveryHandlers constructs delivery endpoints.
func NewDeliveryHandlers(deliveries services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{deliveries: deliveries}
}

// Routes registers customer-facing delivery endpoints.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	r.Get("/{deliveryID}", h.getOwn)
}

// AdminRoutes registers staff delivery endpoints on an admin-scoped router.
func (h *DeliveryHandlers) AdminRoutes(r chi.Router) {
	r.Post("/deliveries", h.adminCreate)
	r.Get("/deliveries", h.adminList)
	r.Get("/deliveries/{deliveryID}", h.adminGet)
	r.Post("/deliveries/{deliveryID}/status", h.adminUpdateStatus)
	r.Post("/deliveries/{deliveryID}/tracking", h.adminAppendTracking)
	r.Post("/deliveries/{deliveryID}/cancel", h.adminCancel)
}

func (h *DeliveryHandlers) getOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	delivery, err := h.deliveries.GetDelivery(r.Context(), services.GetDeliveryCommand{
		DeliveryID: chi.URLParam(r, "deliveryID"),
		ActorID:    identity.UID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

func (h *DeliveryHandlers) adminCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		OrderID           string         `json:"order_id"`
		RecipientName     string         `json:"recipient_name"`
		RecipientPhone    string         `json:"recipient_phone"`
		Address           addressPayload `json:"address"`
		ScheduledDate     *string        `json:"scheduled_date"`
		EstimatedDelivery *string        `json:"estimated_delivery"`
		Notes             string         `json:"notes"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	scheduled, err := parseTimePtr(body.ScheduledDate)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "scheduled_date must be RFC 3339", http.StatusBadRequest))
		return
	}
	estimated, err := parseTimePtr(body.EstimatedDelivery)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "estimated_delivery must be RFC 3339", http.StatusBadRequest))
		return
	}

	delivery, err := h.deliveries.CreateDelivery(r.Context(), services.CreateDeliveryCommand{
		OrderID:           body.OrderID,
		RecipientName:     body.RecipientName,
		RecipientPhone:    body.RecipientPhone,
		Address:           body.Address.toDomain(),
		ScheduledDate:     scheduled,
		EstimatedDelivery: estimated,
		Notes:             body.Notes,
		ActorID:           identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildDeliveryPayload(delivery))
}

func (h *DeliveryHandlers) adminList(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var statuses []domain.DeliveryStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			statuses = append(statuses, domain.DeliveryStatus(part))
		}
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.deliveries.ListDeliveries(r.Context(), services.ListDeliveriesCommand{
		OwnerID:    strings.TrimSpace(r.URL.Query().Get("owner_id")),
		Status:     statuses,
		Pagination: pager,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildDeliveryPayload))
}

func (h *DeliveryHandlers) adminGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	delivery, err := h.deliveries.GetDelivery(r.Context(), services.GetDeliveryCommand{
		DeliveryID: chi.URLParam(r, "deliveryID"),
		ActorID:    identity.UID,
		IsAdmin:    true,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

func (h *DeliveryHandlers) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Status            string  `json:"status"`
		EstimatedDelivery *string `json:"estimated_delivery"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	estimated, err := parseTimePtr(body.EstimatedDelivery)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "estimated_delivery must be RFC 3339", http.StatusBadRequest))
		return
	}

	delivery, err := h.deliveries.UpdateStatus(r.Context(), services.UpdateDeliveryStatusCommand{
		DeliveryID:        chi.URLParam(r, "deliveryID"),
		Target:            domain.DeliveryStatus(body.Status),
		EstimatedDelivery: estimated,
		ActorID:           identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

func (h *DeliveryHandlers) adminAppendTracking(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	delivery, err := h.deliveries.AppendTracking(r.Context(), services.AppendTrackingCommand{
		DeliveryID: chi.URLParam(r, "deliveryID"),
		Message:    body.Message,
		ActorID:    identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

func (h *DeliveryHandlers) adminCancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body := struct {
		Reason string `json:"reason"`
	}{}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeInvalidBody(r.Context(), w, err)
			return
		}
	}

	delivery, err := h.deliveries.Cancel(r.Context(), services.CancelDeliveryCommand{
		DeliveryID: chi.URLParam(r, "deliveryID"),
		Reason:     body.Reason,
		ActorID:    identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

type trackingUpdatePayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	UpdatedBy string `json:"updated_by"`
}

type deliveryPayload struct {
	ID                string                  `json:"id"`
	OrderID           string                  `json:"order_id"`
	OwnerID           string                  `json:"owner_id"`
	RecipientName     string                  `json:"recipient_name"`
	RecipientPhone    string                  `json:"recipient_phone,omitempty"`
	Address           addressPayload          `json:"address"`
	Status            string                  `json:"status"`
	ScheduledDate     *string                 `json:"scheduled_date,omitempty"`
	EstimatedDelivery *string                 `json:"estimated_delivery,omitempty"`
	DeliveredAt       *string                 `json:"delivered_at,omitempty"`
	TrackingUpdates   []trackingUpdatePayload `json:"tracking_updates"`
	Notes             string                  `json:"notes,omitempty"`
	Cancellation      *cancellationPayload    `json:"cancellation,omitempty"`
	CreatedAt         string                  `json:"created_at"`
	UpdatedAt         string                  `json:"updated_at"`
}

func buildDeliveryPayload(delivery domain.Delivery) deliveryPayload {
	updates := make([]trackingUpdatePayload, 0, len(delivery.TrackingUpdates))
	for _, update := range delivery.TrackingUpdates {
		updates = append(updates, trackingUpdatePayload{
			Message:   update.Message,
			Timestamp: formatTime(update.Timestamp),
			UpdatedBy: update.UpdatedBy,
		})
	}
	return deliveryPayload{
		ID:                delivery.ID,
		OrderID:           delivery.OrderID,
		OwnerID:           delivery.OwnerID,
		RecipientName:     delivery.RecipientName,
		RecipientPhone:    delivery.RecipientPhone,
		Address:           buildAddressPayload(delivery.Address),
		Status:            string(delivery.Status),
		ScheduledDate:     formatTimePtr(delivery.ScheduledDate),
		EstimatedDelivery: formatTimePtr(delivery.EstimatedDelivery),
		DeliveredAt:       formatTimePtr(delivery.DeliveredAt),
		TrackingUpdates:   updates,
		Notes:             delivery.Notes,
		Cancellation:      buildCancellationPayload(delivery.Cancellation),
		CreatedAt:         formatTime(delivery.CreatedAt),
		UpdatedAt:         formatTime(delivery.UpdatedAt),
	}
}
