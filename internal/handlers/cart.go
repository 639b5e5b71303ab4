package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// CartHandlers exposes the authenticated customer's basket.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart endpoints backed by the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers cart endpoints on the provided router. The router group is
// expected to carry customer authentication middleware.
func (h *CartHandlers) Routes(r chi.Router) {
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/lines", h.addLine)
	r.Patch("/lines/{refID}", h.updateLine)
	r.Delete("/lines/{refID}", h.removeLine)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) addLine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Kind     string `json:"kind"`
		RefID    string `json:"ref_id"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	cart, err := h.carts.AddLine(r.Context(), services.AddCartLineCommand{
		OwnerID:  identity.UID,
		Kind:     domain.LineKind(body.Kind),
		RefID:    body.RefID,
		Quantity: body.Quantity,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) updateLine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	cart, err := h.carts.UpdateLineQuantity(r.Context(), services.UpdateCartLineCommand{
		OwnerID:  identity.UID,
		RefID:    chi.URLParam(r, "refID"),
		Quantity: body.Quantity,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) removeLine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveLine(r.Context(), services.RemoveCartLineCommand{
		OwnerID: identity.UID,
		RefID:   chi.URLParam(r, "refID"),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildCartPayload(cart))
}

type cartLinePayload struct {
	Kind      string `json:"kind"`
	RefID     string `json:"ref_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type cartPayload struct {
	OwnerID   string            `json:"owner_id"`
	Lines     []cartLinePayload `json:"lines"`
	Total     int64             `json:"total"`
	CreatedAt string            `json:"created_at,omitempty"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	lines := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLinePayload{
			Kind:      string(line.Kind),
			RefID:     line.RefID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return cartPayload{
		OwnerID:   cart.OwnerID,
		Lines:     lines,
		Total:     cart.Total,
		CreatedAt: formatTime(cart.CreatedAt),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}
