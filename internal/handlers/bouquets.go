package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// BouquetHandlers serves customer-configured bouquet endpoints.
type BouquetHandlers struct {
	catalog services.CatalogService
}

// NewBouquetHandlers constructs bouquet endpoints.
func NewBouquetHandlers(catalog services.CatalogService) *BouquetHandlers {
	return &BouquetHandlers{catalog: catalog}
}

// Routes registers bouquet endpoints. The group carries customer auth.
func (h *BouquetHandlers) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{bouquetID}", h.get)
}

func (h *BouquetHandlers) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Flowers []struct {
			FlowerID     string `json:"flower_id"`
			Name         string `json:"name"`
			Count        int    `json:"count"`
			PricePerStem int64  `json:"price_per_stem"`
		} `json:"flowers"`
		Wrapping struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Price int64  `json:"price"`
		} `json:"wrapping"`
		Note          string `json:"note"`
		RecipientName string `json:"recipient_name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	flowers := make([]domain.BouquetFlower, 0, len(body.Flowers))
	for _, flower := range body.Flowers {
		flowers = append(flowers, domain.BouquetFlower{
			FlowerID:     flower.FlowerID,
			Name:         flower.Name,
			Count:        flower.Count,
			PricePerStem: flower.PricePerStem,
		})
	}

	bouquet, err := h.catalog.CreateBouquet(r.Context(), services.CreateBouquetCommand{
		OwnerID: identity.UID,
		Flowers: flowers,
		Wrapping: domain.BouquetWrapping{
			ID:    body.Wrapping.ID,
			Name:  body.Wrapping.Name,
			Price: body.Wrapping.Price,
		},
		Note:          body.Note,
		RecipientName: body.RecipientName,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildBouquetPayload(bouquet))
}

func (h *BouquetHandlers) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	page, err := h.catalog.ListBouquets(r.Context(), identity.UID, pager)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildBouquetPayload))
}

func (h *BouquetHandlers) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	bouquet, err := h.catalog.GetBouquet(r.Context(), services.GetBouquetCommand{
		BouquetID: chi.URLParam(r, "bouquetID"),
		ActorID:   identity.UID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildBouquetPayload(bouquet))
}

type bouquetFlowerPayload struct {
	FlowerID     string `json:"flower_id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
	PricePerStem int64  `json:"price_per_stem"`
}

type bouquetPayload struct {
	ID       string                 `json:"id"`
	OwnerID  string                 `json:"owner_id"`
	Flowers  []bouquetFlowerPayload `json:"flowers"`
	Wrapping struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
	} `json:"wrapping"`
	Note          string `json:"note,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
	TotalPrice    int64  `json:"total_price"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func buildBouquetPayload(bouquet domain.Bouquet) bouquetPayload {
	flowers := make([]bouquetFlowerPayload, 0, len(bouquet.Flowers))
	for _, flower := range bouquet.Flowers {
		flowers = append(flowers, bouquetFlowerPayload{
			FlowerID:     flower.FlowerID,
			Name:         flower.Name,
			Count:        flower.Count,
			PricePerStem: flower.PricePerStem,
		})
	}
	payload := bouquetPayload{
		ID:            bouquet.ID,
		OwnerID:       bouquet.OwnerID,
		Flowers:       flowers,
		Note:          bouquet.Note,
		RecipientName: bouquet.RecipientName,
		TotalPrice:    bouquet.TotalPrice,
		CreatedAt:     formatTime(bouquet.CreatedAt),
		UpdatedAt:     formatTime(bouquet.UpdatedAt),
	}
	payload.Wrapping.ID = bouquet.Wrapping.ID
	payload.Wrapping.Name = bouquet.Wrapping.Name
	payload.Wrapping.Price = bouquet.Wrapping.Price
	return payload
}
