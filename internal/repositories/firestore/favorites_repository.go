package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/bloomfield/api/internal/domain"
	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

const favoritesCollection = "favorites"

// FavoritesRepository stores the single favorites list per owner, keyed by
// the owner uid like carts.
type FavoritesRepository struct {
	provider  *pfirestore.Provider
	favorites *pfirestore.BaseRepository[favoritesDocument]
}

// NewFavoritesRepository constructs a Firestore-backed favorites repository.
func NewFavoritesRepository(provider *pfirestore.Provider) (*FavoritesRepository, error) {
	if provider == nil {
		return nil, errors.New("favorites repository requires firestore provider")
	}
	return &FavoritesRepository{
		provider:  provider,
		favorites: pfirestore.NewBaseRepository[favoritesDocument](provider, favoritesCollection, nil, nil),
	}, nil
}

// Get loads the owner's favorites list.
func (r *FavoritesRepository) Get(ctx context.Context, ownerID string) (domain.Favorites, error) {
	if r == nil || r.favorites == nil {
		return domain.Favorites{}, errors.New("favorites repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Favorites{}, errors.New("favorites repository: owner id is required")
	}

	doc, err := r.favorites.Get(ctx, uid)
	if err != nil {
		return domain.Favorites{}, err
	}
	return favoritesFromDocument(doc.ID, doc.Data), nil
}

// Mutate applies fn to the owner's favorites inside a transaction, creating
// the list lazily on first use.
func (r *FavoritesRepository) Mutate(ctx context.Context, ownerID string, fn func(favorites *domain.Favorites) error) (domain.Favorites, error) {
	if r == nil || r.provider == nil {
		return domain.Favorites{}, errors.New("favorites repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Favorites{}, errors.New("favorites repository: owner id is required")
	}
	if fn == nil {
		return domain.Favorites{}, errors.New("favorites repository: mutate function is required")
	}

	var saved domain.Favorites
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.favorites.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		favorites := domain.Favorites{OwnerID: uid, CreatedAt: now}

		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			// lazily created below
		case codes.OK:
			var doc favoritesDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return err
			}
			favorites = favoritesFromDocument(uid, doc)
		default:
			return err
		}

		if err := fn(&favorites); err != nil {
			return err
		}

		favorites.OwnerID = uid
		favorites.UpdatedAt = now
		if favorites.CreatedAt.IsZero() {
			favorites.CreatedAt = now
		}
		if err := tx.Set(ref, favoritesToDocument(favorites)); err != nil {
			return err
		}
		saved = favorites
		return nil
	})
	if err != nil {
		return domain.Favorites{}, err
	}
	return saved, nil
}

type favoritesDocument struct {
	Entries   []favoriteEntryDocument `firestore:"entries"`
	CreatedAt time.Time               `firestore:"createdAt"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type favoriteEntryDocument struct {
	Kind  string `firestore:"kind"`
	RefID string `firestore:"refId"`
}

func favoritesToDocument(favorites domain.Favorites) favoritesDocument {
	doc := favoritesDocument{
		Entries:   make([]favoriteEntryDocument, 0, len(favorites.Entries)),
		CreatedAt: favorites.CreatedAt.UTC(),
		UpdatedAt: favorites.UpdatedAt.UTC(),
	}
	for _, entry := range favorites.Entries {
		doc.Entries = append(doc.Entries, favoriteEntryDocument{
			Kind:  string(entry.Kind),
			RefID: entry.RefID,
		})
	}
	return doc
}

func favoritesFromDocument(ownerID string, doc favoritesDocument) domain.Favorites {
	favorites := domain.Favorites{
		OwnerID:   ownerID,
		Entries:   make([]domain.FavoriteEntry, 0, len(doc.Entries)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, entry := range doc.Entries {
		favorites.Entries = append(favorites.Entries, domain.FavoriteEntry{
			Kind:  domain.LineKind(entry.Kind),
			RefID: entry.RefID,
		})
	}
	return favorites
}

var _ repositories.FavoritesRepository = (*FavoritesRepository)(nil)
