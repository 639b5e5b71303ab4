package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// OrderHandlers serves order reads and lifecycle writes for both customers
// and staff. Customers only ever see their own orders; the service enforces
// ownership so the handlers just forward the actor.
type OrderHandlers struct {
	orders     services.OrderService
	deliveries services.DeliveryService
}

// NewOrderHandlers constructs order endpoints.
func NewOrderHandlers(orders services.OrderService, deliveries services.DeliveryService) *OrderHandlers {
	return &OrderHandlers{orders: orders, deliveries: deliveries}
}

// Routes registers customer-facing order endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Get("/", h.listOwn)
	r.Get("/{orderID}", h.getOwn)
	r.Get("/{orderID}/delivery", h.getOwnDelivery)
	r.Get("/{orderID}/receipt", h.receiptOwn)
	r.Post("/{orderID}/cancel", h.cancelOwn)
}

// AdminRoutes registers staff order endpoints on an admin-scoped router.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	r.Get("/orders", h.adminList)
	r.Get("/orders/{orderID}", h.adminGet)
	r.Get("/orders/{orderID}/receipt", h.adminReceipt)
	r.Post("/orders/{orderID}/status", h.adminTransition)
	r.Post("/orders/{orderID}/cancel", h.adminCancel)
}

func (h *OrderHandlers) listOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.orders.ListOrders(r.Context(), services.ListOrdersCommand{
		ActorID:    identity.UID,
		Status:     orderStatusesFromQuery(r),
		Pagination: pager,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildOrderPayload))
}

func (h *OrderHandlers) getOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), services.GetOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) getOwnDelivery(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	delivery, err := h.deliveries.GetDeliveryByOrder(r.Context(), services.GetDeliveryByOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildDeliveryPayload(delivery))
}

func (h *OrderHandlers) receiptOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	download, err := h.orders.IssueReceiptURL(r.Context(), services.ReceiptDownloadCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildReceiptPayload(download))
}

func (h *OrderHandlers) cancelOwn(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.Cancel(r.Context(), services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		Actor:   domain.CancelActorCustomer,
		Reason:  body.Reason,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) adminList(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.orders.ListOrders(r.Context(), services.ListOrdersCommand{
		ActorID:    identity.UID,
		IsAdmin:    true,
		OwnerID:    strings.TrimSpace(r.URL.Query().Get("owner_id")),
		Status:     orderStatusesFromQuery(r),
		Pagination: pager,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildOrderPayload))
}

func (h *OrderHandlers) adminGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), services.GetOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		IsAdmin: true,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) adminReceipt(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	download, err := h.orders.IssueReceiptURL(r.Context(), services.ReceiptDownloadCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		IsAdmin: true,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildReceiptPayload(download))
}

func (h *OrderHandlers) adminTransition(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	order, err := h.orders.TransitionStatus(r.Context(), services.TransitionOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Target:  domain.OrderStatus(body.Status),
		ActorID: identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) adminCancel(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.Cancel(r.Context(), services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: identity.UID,
		Actor:   domain.CancelActorAdmin,
		Reason:  body.Reason,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildOrderPayload(order))
}

// orderStatusesFromQuery parses repeated or comma separated status params.
func orderStatusesFromQuery(r *http.Request) []domain.OrderStatus {
	var statuses []domain.OrderStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			statuses = append(statuses, domain.OrderStatus(part))
		}
	}
	return statuses
}

type orderLinePayload struct {
	Kind      string `json:"kind"`
	RefID     string `json:"ref_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	ImageURL  string `json:"image_url,omitempty"`
}

type orderPayload struct {
	ID            string               `json:"id"`
	Number        string               `json:"number"`
	OwnerID       string               `json:"owner_id"`
	Lines         []orderLinePayload   `json:"lines"`
	TotalAmount   int64                `json:"total_amount"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	PaymentMethod string               `json:"payment_method"`
	Notes         string               `json:"notes,omitempty"`
	DeliveryID    string               `json:"delivery_id,omitempty"`
	Cancellation  *cancellationPayload `json:"cancellation,omitempty"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLinePayload{
			Kind:      string(line.Kind),
			RefID:     line.RefID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
			ImageURL:  line.ImageURL,
		})
	}
	return orderPayload{
		ID:            order.ID,
		Number:        order.Number,
		OwnerID:       order.OwnerID,
		Lines:         lines,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: string(order.PaymentMethod),
		Notes:         order.Notes,
		DeliveryID:    order.DeliveryID,
		Cancellation:  buildCancellationPayload(order.Cancellation),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}

func buildReceiptPayload(download services.SignedDownload) map[string]any {
	return map[string]any{
		"download_url": download.URL,
		"object_path":  download.ObjectPath,
		"expires_at":   formatTime(download.ExpiresAt),
	}
}
