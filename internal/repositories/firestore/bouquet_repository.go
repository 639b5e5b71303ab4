package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bloomfield/api/internal/domain"
	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

const bouquetsCollection = "bouquets"

// BouquetRepository stores customer-configured bouquets.
type BouquetRepository struct {
	provider *pfirestore.Provider
	bouquets *pfirestore.BaseRepository[bouquetDocument]
}

// NewBouquetRepository constructs a Firestore-backed bouquet repository.
func NewBouquetRepository(provider *pfirestore.Provider) (*BouquetRepository, error) {
	if provider == nil {
		return nil, errors.New("bouquet repository requires firestore provider")
	}
	return &BouquetRepository{
		provider: provider,
		bouquets: pfirestore.NewBaseRepository[bouquetDocument](provider, bouquetsCollection, nil, nil),
	}, nil
}

// Insert creates the bouquet document, failing on id collisions.
func (r *BouquetRepository) Insert(ctx context.Context, bouquet domain.Bouquet) error {
	if r == nil || r.bouquets == nil {
		return errors.New("bouquet repository not initialised")
	}
	id := strings.TrimSpace(bouquet.ID)
	if id == "" {
		return errors.New("bouquet repository: bouquet id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(bouquetsCollection).Doc(id).Create(ctx, bouquetToDocument(bouquet))
	return pfirestore.WrapError("bouquets.insert", err)
}

// FindByID loads a single bouquet.
func (r *BouquetRepository) FindByID(ctx context.Context, bouquetID string) (domain.Bouquet, error) {
	if r == nil || r.bouquets == nil {
		return domain.Bouquet{}, errors.New("bouquet repository not initialised")
	}
	id := strings.TrimSpace(bouquetID)
	if id == "" {
		return domain.Bouquet{}, errors.New("bouquet repository: bouquet id is required")
	}

	doc, err := r.bouquets.Get(ctx, id)
	if err != nil {
		return domain.Bouquet{}, err
	}
	return bouquetFromDocument(doc.ID, doc.Data), nil
}

// ListByOwner returns a page of the owner's bouquets, newest first.
func (r *BouquetRepository) ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.Page[domain.Bouquet], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Bouquet]{}, errors.New("bouquet repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Page[domain.Bouquet]{}, errors.New("bouquet repository: owner id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Bouquet]{}, err
	}

	query := client.Collection(bouquetsCollection).Query.Where("ownerId", "==", uid)
	total, err := countDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Bouquet]{}, pfirestore.WrapError("bouquets.count", err)
	}

	pager = normalisePager(pager)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.bouquets.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Bouquet]{}, err
	}

	items := make([]domain.Bouquet, 0, len(docs))
	for _, doc := range docs {
		items = append(items, bouquetFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

type bouquetDocument struct {
	OwnerID       string                  `firestore:"ownerId"`
	Flowers       []bouquetFlowerDocument `firestore:"flowers"`
	Wrapping      bouquetWrappingDocument `firestore:"wrapping"`
	Note          string                  `firestore:"note,omitempty"`
	RecipientName string                  `firestore:"recipientName,omitempty"`
	TotalPrice    int64                   `firestore:"totalPrice"`
	CreatedAt     time.Time               `firestore:"createdAt"`
	UpdatedAt     time.Time               `firestore:"updatedAt"`
}

type bouquetFlowerDocument struct {
	FlowerID     string `firestore:"flowerId"`
	Name         string `firestore:"name"`
	Count        int    `firestore:"count"`
	PricePerStem int64  `firestore:"pricePerStem"`
}

type bouquetWrappingDocument struct {
	ID    string `firestore:"id"`
	Name  string `firestore:"name"`
	Price int64  `firestore:"price"`
}

func bouquetToDocument(bouquet domain.Bouquet) bouquetDocument {
	doc := bouquetDocument{
		OwnerID: bouquet.OwnerID,
		Flowers: make([]bouquetFlowerDocument, 0, len(bouquet.Flowers)),
		Wrapping: bouquetWrappingDocument{
			ID:    bouquet.Wrapping.ID,
			Name:  bouquet.Wrapping.Name,
			Price: bouquet.Wrapping.Price,
		},
		Note:          bouquet.Note,
		RecipientName: bouquet.RecipientName,
		TotalPrice:    bouquet.TotalPrice,
		CreatedAt:     bouquet.CreatedAt.UTC(),
		UpdatedAt:     bouquet.UpdatedAt.UTC(),
	}
	for _, flower := range bouquet.Flowers {
		doc.Flowers = append(doc.Flowers, bouquetFlowerDocument{
			FlowerID:     flower.FlowerID,
			Name:         flower.Name,
			Count:        flower.Count,
			PricePerStem: flower.PricePerStem,
		})
	}
	return doc
}

func bouquetFromDocument(id string, doc bouquetDocument) domain.Bouquet {
	bouquet := domain.Bouquet{
		ID:      id,
		OwnerID: doc.OwnerID,
		Flowers: make([]domain.BouquetFlower, 0, len(doc.Flowers)),
		Wrapping: domain.BouquetWrapping{
			ID:    doc.Wrapping.ID,
			Name:  doc.Wrapping.Name,
			Price: doc.Wrapping.Price,
		},
		Note:          doc.Note,
		RecipientName: doc.RecipientName,
		TotalPrice:    doc.TotalPrice,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, flower := range doc.Flowers {
		bouquet.Flowers = append(bouquet.Flowers, domain.BouquetFlower{
			FlowerID:     flower.FlowerID,
			Name:         flower.Name,
			Count:        flower.Count,
			PricePerStem: flower.PricePerStem,
		})
	}
	return bouquet
}

var _ repositories.BouquetRepository = (*BouquetRepository)(nil)
