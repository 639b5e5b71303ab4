package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// CatalogHandlers serves the public storefront catalog and the staff-side
// item management endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs catalog endpoints.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// PublicRoutes registers unauthenticated catalog reads.
func (h *CatalogHandlers) PublicRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{itemID}", h.getItem)
	r.Get("/items/slug/{slug}", h.getItemBySlug)
}

// AdminRoutes registers staff catalog management endpoints.
func (h *CatalogHandlers) AdminRoutes(r chi.Router) {
	r.Get("/items", h.adminListItems)
	r.Post("/items", h.createItem)
	r.Put("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.deleteItem)
	r.Post("/items/{itemID}/stock", h.adjustStock)
	r.Post("/items/{itemID}/images", h.issueImageUploadURL)
}

func (h *CatalogHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.catalog.ListItems(r.Context(), services.ListItemsCommand{
		Category:      strings.TrimSpace(query.Get("category")),
		FeaturedOnly:  query.Get("featured") == "true",
		AvailableOnly: true,
		Pagination:    pager,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildItemPayload))
}

func (h *CatalogHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItem(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildItemPayload(item))
}

func (h *CatalogHandlers) getItemBySlug(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItemBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildItemPayload(item))
}

func (h *CatalogHandlers) adminListItems(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	pager, ok := paginationFromQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.catalog.ListItems(r.Context(), services.ListItemsCommand{
		Category:      strings.TrimSpace(query.Get("category")),
		FeaturedOnly:  query.Get("featured") == "true",
		AvailableOnly: query.Get("available") == "true",
		IncludeHidden: true,
		Pagination:    pager,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageEnvelope(page, buildItemPayload))
}

type itemRequest struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Description     string   `json:"description"`
	Price           int64    `json:"price"`
	DiscountPrice   *int64   `json:"discount_price"`
	Category        string   `json:"category"`
	Images          []string `json:"images"`
	IsFeatured      bool     `json:"is_featured"`
	IsAvailable     bool     `json:"is_available"`
	Stock           int      `json:"stock"`
	PreparationTime int      `json:"preparation_time"`
}

func (req itemRequest) toCommand(itemID, actorID string) services.UpsertItemCommand {
	return services.UpsertItemCommand{
		ItemID:          itemID,
		Name:            req.Name,
		Slug:            req.Slug,
		Description:     req.Description,
		Price:           req.Price,
		DiscountPrice:   req.DiscountPrice,
		Category:        req.Category,
		Images:          req.Images,
		IsFeatured:      req.IsFeatured,
		IsAvailable:     req.IsAvailable,
		Stock:           req.Stock,
		PreparationTime: req.PreparationTime,
		ActorID:         actorID,
	}
}

func (h *CatalogHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body itemRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	item, err := h.catalog.CreateItem(r.Context(), body.toCommand("", identity.UID))
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildItemPayload(item))
}

func (h *CatalogHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body itemRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	item, err := h.catalog.UpdateItem(r.Context(), body.toCommand(chi.URLParam(r, "itemID"), identity.UID))
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildItemPayload(item))
}

func (h *CatalogHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteItem(r.Context(), services.DeleteItemCommand{
		ItemID:  chi.URLParam(r, "itemID"),
		ActorID: identity.UID,
	}); err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	item, err := h.catalog.AdjustStock(r.Context(), services.AdjustStockCommand{
		ItemID:  chi.URLParam(r, "itemID"),
		Delta:   body.Delta,
		ActorID: identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildItemPayload(item))
}

func (h *CatalogHandlers) issueImageUploadURL(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeInvalidBody(r.Context(), w, err)
		return
	}

	upload, err := h.catalog.IssueImageUploadURL(r.Context(), services.ItemImageUploadCommand{
		ItemID:      chi.URLParam(r, "itemID"),
		FileName:    body.FileName,
		ContentType: body.ContentType,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeAdminServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"upload_url":   upload.URL,
		"object_path":  upload.ObjectPath,
		"content_type": upload.ContentType,
		"expires_at":   formatTime(upload.ExpiresAt),
	})
}

type itemPayload struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Description     string   `json:"description,omitempty"`
	Price           int64    `json:"price"`
	DiscountPrice   *int64   `json:"discount_price,omitempty"`
	EffectivePrice  int64    `json:"effective_price"`
	Category        string   `json:"category"`
	Images          []string `json:"images"`
	IsFeatured      bool     `json:"is_featured"`
	IsAvailable     bool     `json:"is_available"`
	Stock           int      `json:"stock"`
	Rating          float64  `json:"rating"`
	NumReviews      int      `json:"num_reviews"`
	PreparationTime int      `json:"preparation_time,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func buildItemPayload(item domain.Item) itemPayload {
	images := item.Images
	if images == nil {
		images = []string{}
	}
	return itemPayload{
		ID:              item.ID,
		Name:            item.Name,
		Slug:            item.Slug,
		Description:     item.Description,
		Price:           item.Price,
		DiscountPrice:   item.DiscountPrice,
		EffectivePrice:  item.EffectivePrice(),
		Category:        item.Category,
		Images:          images,
		IsFeatured:      item.IsFeatured,
		IsAvailable:     item.IsAvailable,
		Stock:           item.Stock,
		Rating:          item.Rating,
		NumReviews:      item.NumReviews,
		PreparationTime: item.PreparationTime,
		CreatedAt:       formatTime(item.CreatedAt),
		UpdatedAt:       formatTime(item.UpdatedAt),
	}
}
