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

// CheckoutRepository commits a checkout as one Firestore transaction: the
// cart is re-read inside the transaction (so the build callback decides on
// the state that will actually be cleared), the order and optional delivery
// are created, and the cart is emptied. Any error leaves all three untouched.
type CheckoutRepository struct {
	provider   *pfirestore.Provider
	carts      *pfirestore.BaseRepository[cartDocument]
	orders     *pfirestore.BaseRepository[orderDocument]
	deliveries *pfirestore.BaseRepository[deliveryDocument]
}

// NewCheckoutRepository constructs a Firestore-backed checkout transaction runner.
func NewCheckoutRepository(provider *pfirestore.Provider) (*CheckoutRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout repository requires firestore provider")
	}
	return &CheckoutRepository{
		provider:   provider,
		carts:      pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
		orders:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		deliveries: pfirestore.NewBaseRepository[deliveryDocument](provider, deliveriesCollection, nil, nil),
	}, nil
}

// RunCheckout executes build against the transactional view of the owner's
// cart and persists its output.
func (r *CheckoutRepository) RunCheckout(ctx context.Context, ownerID string, build repositories.CheckoutBuild) (repositories.CheckoutResult, error) {
	if r == nil || r.provider == nil {
		return repositories.CheckoutResult{}, errors.New("checkout repository not initialised")
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return repositories.CheckoutResult{}, errors.New("checkout repository: owner id is required")
	}
	if build == nil {
		return repositories.CheckoutResult{}, errors.New("checkout repository: build function is required")
	}

	var result repositories.CheckoutResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, err := r.carts.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}

		cart := domain.Cart{OwnerID: uid}
		snapshot, err := tx.Get(cartRef)
		switch status.Code(err) {
		case codes.NotFound:
			// never carted anything; build will reject the empty cart
		case codes.OK:
			var doc cartDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return err
			}
			cart = cartFromDocument(uid, doc)
		default:
			return err
		}

		order, delivery, err := build(cart)
		if err != nil {
			return err
		}
		if strings.TrimSpace(order.ID) == "" {
			return errors.New("checkout repository: built order is missing an id")
		}

		now := time.Now().UTC()
		order.OwnerID = uid
		order.CreatedAt = now
		order.UpdatedAt = now

		if delivery != nil {
			if strings.TrimSpace(delivery.ID) == "" {
				return errors.New("checkout repository: built delivery is missing an id")
			}
			delivery.OrderID = order.ID
			delivery.OwnerID = uid
			delivery.CreatedAt = now
			delivery.UpdatedAt = now
			order.DeliveryID = delivery.ID

			deliveryRef, err := r.deliveries.DocumentRef(ctx, delivery.ID)
			if err != nil {
				return err
			}
			if err := tx.Create(deliveryRef, deliveryToDocument(*delivery)); err != nil {
				return err
			}
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, orderToDocument(order)); err != nil {
			return err
		}

		cleared := domain.Cart{
			OwnerID:   uid,
			Lines:     []domain.CartLine{},
			CreatedAt: cart.CreatedAt,
			UpdatedAt: now,
		}
		if cleared.CreatedAt.IsZero() {
			cleared.CreatedAt = now
		}
		if err := tx.Set(cartRef, cartToDocument(cleared)); err != nil {
			return err
		}

		result = repositories.CheckoutResult{Order: order, Delivery: delivery}
		return nil
	})
	if err != nil {
		return repositories.CheckoutResult{}, err
	}
	return result, nil
}

var _ repositories.CheckoutRepository = (*CheckoutRepository)(nil)
