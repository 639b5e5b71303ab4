package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/httpx"
	"github.com/bloomfield/api/internal/services"
)

// CheckoutHandlers converts the caller's basket into an order, with a linked
// delivery record when delivery details are supplied.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout endpoints.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers checkout endpoints. The group carries customer auth.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	r.Post("/", h.checkoutCart)
}

func (h *CheckoutHandlers) checkoutCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		PaymentMethod string `json:"payment_method"`
		Notes         string `json:"notes"`
		// Absent for pickup orders.
		Delivery *struct {
			RecipientName  string         `json:"recipient_name"`
			RecipientPhone string         `json:"recipient_phone"`
			Address        addressPayload `json:"address"`
			ScheduledDate  *string        `json:"scheduled_date"`
			Notes          string         `json:"notes"`
		} `json:"delivery"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	cmd := services.CheckoutCommand{
		OwnerID:       identity.UID,
		PaymentMethod: domain.PaymentMethod(body.PaymentMethod),
		Notes:         body.Notes,
	}
	if body.Delivery != nil {
		scheduled, err := parseTimePtr(body.Delivery.ScheduledDate)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "delivery.scheduled_date must be RFC 3339", http.StatusBadRequest))
			return
		}
		cmd.Delivery = &services.DeliveryDetails{
			RecipientName:  body.Delivery.RecipientName,
			RecipientPhone: body.Delivery.RecipientPhone,
			Address:        body.Delivery.Address.toDomain(),
			ScheduledDate:  scheduled,
			Notes:          body.Delivery.Notes,
		}
	}

	result, err := h.checkout.Checkout(r.Context(), cmd)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	payload := map[string]any{"order": buildOrderPayload(result.Order)}
	if result.Delivery != nil {
		payload["delivery"] = buildDeliveryPayload(*result.Delivery)
	}
	writeJSON(w, http.StatusCreated, payload)
}
