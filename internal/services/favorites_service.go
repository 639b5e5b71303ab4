package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/repositories"
)

// FavoritesServiceDeps bundles collaborators required to construct the favorites service.
type FavoritesServiceDeps struct {
	Favorites repositories.FavoritesRepository
	Items     repositories.ItemRepository
	Bouquets  repositories.BouquetRepository
	Clock     func() time.Time
}

type favoritesService struct {
	favorites repositories.FavoritesRepository
	items     repositories.ItemRepository
	bouquets  repositories.BouquetRepository
	clock     func() time.Time
}

// NewFavoritesService wires dependencies into a concrete FavoritesService implementation.
func NewFavoritesService(deps FavoritesServiceDeps) (FavoritesService, error) {
	if deps.Favorites == nil {
		return nil, errors.New("favorites service: favorites repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("favorites service: item repository is required")
	}
	if deps.Bouquets == nil {
		return nil, errors.New("favorites service: bouquet repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &favoritesService{
		favorites: deps.Favorites,
		items:     deps.Items,
		bouquets:  deps.Bouquets,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

func (s *favoritesService) ListFavorites(ctx context.Context, ownerID string) (Favorites, error) {
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return Favorites{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}

	favorites, err := s.favorites.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Favorites{OwnerID: uid, Entries: []domain.FavoriteEntry{}}, nil
		}
		return Favorites{}, mapRepositoryError(err)
	}
	return favorites, nil
}

func (s *favoritesService) AddFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (Favorites, error) {
	uid, refID, err := s.validateToggle(cmd)
	if err != nil {
		return Favorites{}, err
	}
	if err := s.verifyReference(ctx, uid, cmd.Kind, refID); err != nil {
		return Favorites{}, err
	}

	favorites, err := s.favorites.Mutate(ctx, uid, func(favorites *domain.Favorites) error {
		for _, entry := range favorites.Entries {
			if entry.Kind == cmd.Kind && entry.RefID == refID {
				// Adding twice is a no-op, not an error.
				return nil
			}
		}
		favorites.Entries = append(favorites.Entries, domain.FavoriteEntry{Kind: cmd.Kind, RefID: refID})
		return nil
	})
	if err != nil {
		return Favorites{}, mapRepositoryError(err)
	}
	return favorites, nil
}

func (s *favoritesService) RemoveFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (Favorites, error) {
	uid, refID, err := s.validateToggle(cmd)
	if err != nil {
		return Favorites{}, err
	}

	favorites, err := s.favorites.Mutate(ctx, uid, func(favorites *domain.Favorites) error {
		for i, entry := range favorites.Entries {
			if entry.Kind == cmd.Kind && entry.RefID == refID {
				favorites.Entries = append(favorites.Entries[:i], favorites.Entries[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: favorite %q", ErrNotFound, refID)
	})
	if err != nil {
		return Favorites{}, mapRepositoryError(err)
	}
	return favorites, nil
}

func (s *favoritesService) validateToggle(cmd ToggleFavoriteCommand) (string, string, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	refID := strings.TrimSpace(cmd.RefID)
	if uid == "" {
		return "", "", fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if refID == "" {
		return "", "", fmt.Errorf("%w: reference id is required", ErrInvalidInput)
	}
	if !domain.ValidLineKind(cmd.Kind) {
		return "", "", fmt.Errorf("%w: unknown favorite kind %q", ErrInvalidInput, cmd.Kind)
	}
	return uid, refID, nil
}

func (s *favoritesService) verifyReference(ctx context.Context, ownerID string, kind LineKind, refID string) error {
	switch kind {
	case domain.LineKindProduct:
		if _, err := s.items.FindByID(ctx, refID); err != nil {
			return mapRepositoryError(err)
		}
	case domain.LineKindCustom:
		bouquet, err := s.bouquets.FindByID(ctx, refID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if bouquet.OwnerID != ownerID {
			return fmt.Errorf("%w: bouquet %q", ErrAccessDenied, refID)
		}
	}
	return nil
}

var _ FavoritesService = (*favoritesService)(nil)
