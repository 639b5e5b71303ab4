package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/services"
)

// FavoritesHandlers serves the per-customer favorites list.
type FavoritesHandlers struct {
	favorites services.FavoritesService
}

// NewFavoritesHandlers constructs favorites endpoints.
func NewFavoritesHandlers(favorites services.FavoritesService) *FavoritesHandlers {
	return &FavoritesHandlers{favorites: favorites}
}

// Routes registers favorites endpoints. The group carries customer auth.
func (h *FavoritesHandlers) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{kind}/{refID}", h.add)
	r.Delete("/{kind}/{refID}", h.remove)
}

func (h *FavoritesHandlers) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	favorites, err := h.favorites.ListFavorites(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildFavoritesPayload(favorites))
}

func (h *FavoritesHandlers) add(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	favorites, err := h.favorites.AddFavorite(r.Context(), services.ToggleFavoriteCommand{
		OwnerID: identity.UID,
		Kind:    domain.LineKind(chi.URLParam(r, "kind")),
		RefID:   chi.URLParam(r, "refID"),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildFavoritesPayload(favorites))
}

func (h *FavoritesHandlers) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	favorites, err := h.favorites.RemoveFavorite(r.Context(), services.ToggleFavoriteCommand{
		OwnerID: identity.UID,
		Kind:    domain.LineKind(chi.URLParam(r, "kind")),
		RefID:   chi.URLParam(r, "refID"),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildFavoritesPayload(favorites))
}

type favoriteEntryPayload struct {
	Kind  string `json:"kind"`
	RefID string `json:"ref_id"`
}

type favoritesPayload struct {
	OwnerID   string                 `json:"owner_id"`
	Entries   []favoriteEntryPayload `json:"entries"`
	CreatedAt string                 `json:"created_at,omitempty"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
}

func buildFavoritesPayload(favorites domain.Favorites) favoritesPayload {
	entries := make([]favoriteEntryPayload, 0, len(favorites.Entries))
	for _, entry := range favorites.Entries {
		entries = append(entries, favoriteEntryPayload{
			Kind:  string(entry.Kind),
			RefID: entry.RefID,
		})
	}
	return favoritesPayload{
		OwnerID:   favorites.OwnerID,
		Entries:   entries,
		CreatedAt: formatTime(favorites.CreatedAt),
		UpdatedAt: formatTime(favorites.UpdatedAt),
	}
}
