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

const cartsCollection = "carts"

// CartRepository persists carts in Firestore. The document id is the owner
// uid, which makes the one-cart-per-owner rule a property of the key space
// rather than application logic.
type CartRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

// Get loads the owner's cart.
func (r *CartRepository) Get(ctx context.Context, ownerID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: owner id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return cartFromDocument(doc.ID, doc.Data), nil
}

// Mutate applies fn to the owner's cart inside a transaction. A missing
// document is presented as an empty cart so first-add creates it lazily.
func (r *CartRepository) Mutate(ctx context.Context, ownerID string, fn func(cart *domain.Cart) error) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: owner id is required")
	}
	if fn == nil {
		return domain.Cart{}, errors.New("cart repository: mutate function is required")
	}

	var saved domain.Cart
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		cart := domain.Cart{OwnerID: uid, CreatedAt: now}

		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			// lazily created below
		case codes.OK:
			var doc cartDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return err
			}
			cart = cartFromDocument(uid, doc)
		default:
			return err
		}

		if err := fn(&cart); err != nil {
			return err
		}

		cart.OwnerID = uid
		cart.RecomputeTotal()
		cart.UpdatedAt = now
		if cart.CreatedAt.IsZero() {
			cart.CreatedAt = now
		}

		if err := tx.Set(ref, cartToDocument(cart)); err != nil {
			return err
		}
		saved = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return saved, nil
}

type cartDocument struct {
	Lines     []cartLineDocument `firestore:"lines"`
	Total     int64              `firestore:"total"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	Kind      string `firestore:"kind"`
	RefID     string `firestore:"refId"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
	Subtotal  int64  `firestore:"subtotal"`
}

func cartToDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Lines:     make([]cartLineDocument, 0, len(cart.Lines)),
		Total:     cart.Total,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDocument{
			Kind:      string(line.Kind),
			RefID:     line.RefID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return doc
}

func cartFromDocument(ownerID string, doc cartDocument) domain.Cart {
	cart := domain.Cart{
		OwnerID:   ownerID,
		Lines:     make([]domain.CartLine, 0, len(doc.Lines)),
		Total:     doc.Total,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, line := range doc.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			Kind:      domain.LineKind(line.Kind),
			RefID:     line.RefID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
