package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bloomfield/api/internal/domain"
	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

const itemsCollection = "items"

// ItemRepository stores catalog items. Deletion is soft: the document stays
// so order line snapshots keep a resolvable reference, and reads filter the
// flag out.
type ItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.BaseRepository[itemDocument]
}

// NewItemRepository constructs a Firestore-backed catalog item repository.
func NewItemRepository(provider *pfirestore.Provider) (*ItemRepository, error) {
	if provider == nil {
		return nil, errors.New("item repository requires firestore provider")
	}
	return &ItemRepository{
		provider: provider,
		items:    pfirestore.NewBaseRepository[itemDocument](provider, itemsCollection, nil, nil),
	}, nil
}

// Insert creates the item document, failing on id collisions.
func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) error {
	if r == nil || r.items == nil {
		return errors.New("item repository not initialised")
	}
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return errors.New("item repository: item id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(itemsCollection).Doc(id).Create(ctx, itemToDocument(item))
	return pfirestore.WrapError("items.insert", err)
}

// Update replaces the item document.
func (r *ItemRepository) Update(ctx context.Context, item domain.Item) error {
	if r == nil || r.items == nil {
		return errors.New("item repository not initialised")
	}
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return errors.New("item repository: item id is required")
	}
	_, err := r.items.Update(ctx, id, []firestore.Update{
		{Path: "name", Value: item.Name},
		{Path: "slug", Value: item.Slug},
		{Path: "description", Value: item.Description},
		{Path: "price", Value: item.Price},
		{Path: "discountPrice", Value: discountValue(item.DiscountPrice)},
		{Path: "category", Value: item.Category},
		{Path: "images", Value: imagesValue(item.Images)},
		{Path: "isFeatured", Value: item.IsFeatured},
		{Path: "isAvailable", Value: item.IsAvailable},
		{Path: "preparationTime", Value: item.PreparationTime},
		{Path: "updatedAt", Value: item.UpdatedAt.UTC()},
	})
	return err
}

// SoftDelete marks the item deleted without removing the document.
func (r *ItemRepository) SoftDelete(ctx context.Context, itemID string, deletedAt time.Time) error {
	if r == nil || r.items == nil {
		return errors.New("item repository not initialised")
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return errors.New("item repository: item id is required")
	}
	_, err := r.items.Update(ctx, id, []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "isAvailable", Value: false},
		{Path: "updatedAt", Value: deletedAt.UTC()},
	})
	return err
}

// FindByID loads an item; soft-deleted items surface as not found.
func (r *ItemRepository) FindByID(ctx context.Context, itemID string) (domain.Item, error) {
	if r == nil || r.items == nil {
		return domain.Item{}, errors.New("item repository not initialised")
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.Item{}, errors.New("item repository: item id is required")
	}

	doc, err := r.items.Get(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	if doc.Data.IsDeleted {
		return domain.Item{}, pfirestore.NotFoundError("items.get", fmt.Errorf("item %s is deleted", id))
	}
	return itemFromDocument(doc.ID, doc.Data), nil
}

// FindBySlug resolves an item by its unique slug.
func (r *ItemRepository) FindBySlug(ctx context.Context, slug string) (domain.Item, error) {
	if r == nil || r.items == nil {
		return domain.Item{}, errors.New("item repository not initialised")
	}
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return domain.Item{}, errors.New("item repository: slug is required")
	}

	docs, err := r.items.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("slug", "==", trimmed).Where("isDeleted", "==", false).Limit(1)
	})
	if err != nil {
		return domain.Item{}, err
	}
	if len(docs) == 0 {
		return domain.Item{}, pfirestore.NotFoundError("items.findBySlug",
			fmt.Errorf("no item with slug %s", trimmed))
	}
	return itemFromDocument(docs[0].ID, docs[0].Data), nil
}

// List returns a page of items; soft-deleted documents are always excluded.
func (r *ItemRepository) List(ctx context.Context, filter repositories.ItemListFilter) (domain.Page[domain.Item], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Item]{}, errors.New("item repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Item]{}, err
	}

	query := client.Collection(itemsCollection).Query.Where("isDeleted", "==", false)
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category", "==", category)
	}
	if filter.FeaturedOnly {
		query = query.Where("isFeatured", "==", true)
	}
	if filter.AvailableOnly && !filter.IncludeHidden {
		query = query.Where("isAvailable", "==", true)
	}

	total, err := countDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Item]{}, pfirestore.WrapError("items.count", err)
	}

	pager := normalisePager(filter.Pagination)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.items.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Item]{}, err
	}

	items := make([]domain.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, itemFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

// AdjustStock applies delta to the stock counter transactionally. The
// resulting level never drops below zero; a draining delta conflicts.
func (r *ItemRepository) AdjustStock(ctx context.Context, itemID string, delta int) (domain.Item, error) {
	if r == nil || r.provider == nil {
		return domain.Item{}, errors.New("item repository not initialised")
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.Item{}, errors.New("item repository: item id is required")
	}

	var updated domain.Item
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.items.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc itemDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		if doc.IsDeleted {
			return pfirestore.NotFoundError("items.adjustStock", fmt.Errorf("item %s is deleted", id))
		}

		next := doc.Stock + delta
		if next < 0 {
			return pfirestore.ConflictError("items.adjustStock",
				fmt.Errorf("stock for item %s would drop below zero (%d%+d)", id, doc.Stock, delta))
		}

		now := time.Now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: next},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		doc.Stock = next
		doc.UpdatedAt = now
		updated = itemFromDocument(id, doc)
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	return updated, nil
}

type itemDocument struct {
	Name            string    `firestore:"name"`
	Slug            string    `firestore:"slug"`
	Description     string    `firestore:"description"`
	Price           int64     `firestore:"price"`
	DiscountPrice   *int64    `firestore:"discountPrice"`
	Category        string    `firestore:"category,omitempty"`
	Images          []string  `firestore:"images"`
	IsFeatured      bool      `firestore:"isFeatured"`
	IsAvailable     bool      `firestore:"isAvailable"`
	Stock           int       `firestore:"stock"`
	Rating          float64   `firestore:"rating"`
	NumReviews      int       `firestore:"numReviews"`
	PreparationTime int       `firestore:"preparationTime,omitempty"`
	CreatedBy       string    `firestore:"createdBy"`
	IsDeleted       bool      `firestore:"isDeleted"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func itemToDocument(item domain.Item) itemDocument {
	return itemDocument{
		Name:            item.Name,
		Slug:            item.Slug,
		Description:     item.Description,
		Price:           item.Price,
		DiscountPrice:   item.DiscountPrice,
		Category:        item.Category,
		Images:          imagesValue(item.Images),
		IsFeatured:      item.IsFeatured,
		IsAvailable:     item.IsAvailable,
		Stock:           item.Stock,
		Rating:          item.Rating,
		NumReviews:      item.NumReviews,
		PreparationTime: item.PreparationTime,
		CreatedBy:       item.CreatedBy,
		IsDeleted:       item.IsDeleted,
		CreatedAt:       item.CreatedAt.UTC(),
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
}

func itemFromDocument(id string, doc itemDocument) domain.Item {
	return domain.Item{
		ID:              id,
		Name:            doc.Name,
		Slug:            doc.Slug,
		Description:     doc.Description,
		Price:           doc.Price,
		DiscountPrice:   doc.DiscountPrice,
		Category:        doc.Category,
		Images:          imagesValue(doc.Images),
		IsFeatured:      doc.IsFeatured,
		IsAvailable:     doc.IsAvailable,
		Stock:           doc.Stock,
		Rating:          doc.Rating,
		NumReviews:      doc.NumReviews,
		PreparationTime: doc.PreparationTime,
		CreatedBy:       doc.CreatedBy,
		IsDeleted:       doc.IsDeleted,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func imagesValue(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

func discountValue(price *int64) any {
	if price == nil {
		return firestore.Delete
	}
	return *price
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)
