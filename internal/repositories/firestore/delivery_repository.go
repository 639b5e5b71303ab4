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

const deliveriesCollection = "deliveries"

// DeliveryRepository persists delivery records in Firestore. Creation and
// mutation both run inside transactions touching the linked order document,
// which is how the one-delivery-per-order rule and the delivery-driven order
// transitions stay consistent under concurrency.
type DeliveryRepository struct {
	provider   *pfirestore.Provider
	deliveries *pfirestore.BaseRepository[deliveryDocument]
	orders     *pfirestore.BaseRepository[orderDocument]
}

// NewDeliveryRepository constructs a Firestore-backed delivery repository.
func NewDeliveryRepository(provider *pfirestore.Provider) (*DeliveryRepository, error) {
	if provider == nil {
		return nil, errors.New("delivery repository requires firestore provider")
	}
	return &DeliveryRepository{
		provider:   provider,
		deliveries: pfirestore.NewBaseRepository[deliveryDocument](provider, deliveriesCollection, nil, nil),
		orders:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Create attaches the delivery to its order. The transaction re-reads the
// order, lets the guard veto (e.g. cancelled orders), and rejects orders
// that already carry a delivery back-reference, so two concurrent creations
// cannot both commit.
func (r *DeliveryRepository) Create(ctx context.Context, delivery domain.Delivery, guard repositories.DeliveryGuard) (domain.Delivery, error) {
	if r == nil || r.provider == nil {
		return domain.Delivery{}, errors.New("delivery repository not initialised")
	}
	if strings.TrimSpace(delivery.ID) == "" {
		return domain.Delivery{}, errors.New("delivery repository: delivery id is required")
	}
	orderID := strings.TrimSpace(delivery.OrderID)
	if orderID == "" {
		return domain.Delivery{}, errors.New("delivery repository: order id is required")
	}

	var saved domain.Delivery
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var orderDoc orderDocument
		if err := snapshot.DataTo(&orderDoc); err != nil {
			return err
		}
		order := orderFromDocument(orderID, orderDoc)

		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		if order.DeliveryID != "" {
			return pfirestore.ConflictError("deliveries.create",
				fmt.Errorf("order %s already has delivery %s", orderID, order.DeliveryID))
		}

		deliveryRef, err := r.deliveries.DocumentRef(ctx, delivery.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		delivery.OwnerID = order.OwnerID
		delivery.CreatedAt = now
		delivery.UpdatedAt = now
		if err := tx.Create(deliveryRef, deliveryToDocument(delivery)); err != nil {
			return err
		}
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "deliveryId", Value: delivery.ID},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		saved = delivery
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	return saved, nil
}

// FindByID loads a single delivery.
func (r *DeliveryRepository) FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	if r == nil || r.deliveries == nil {
		return domain.Delivery{}, errors.New("delivery repository not initialised")
	}
	id := strings.TrimSpace(deliveryID)
	if id == "" {
		return domain.Delivery{}, errors.New("delivery repository: delivery id is required")
	}

	doc, err := r.deliveries.Get(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	return deliveryFromDocument(doc.ID, doc.Data), nil
}

// FindByOrderID resolves the delivery attached to an order.
func (r *DeliveryRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Delivery, error) {
	if r == nil || r.deliveries == nil {
		return domain.Delivery{}, errors.New("delivery repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Delivery{}, errors.New("delivery repository: order id is required")
	}

	docs, err := r.deliveries.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("orderId", "==", id).Limit(1)
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	if len(docs) == 0 {
		return domain.Delivery{}, pfirestore.NotFoundError("deliveries.findByOrder",
			fmt.Errorf("no delivery for order %s", id))
	}
	return deliveryFromDocument(docs[0].ID, docs[0].Data), nil
}

// List returns a page of deliveries newest first.
func (r *DeliveryRepository) List(ctx context.Context, filter repositories.DeliveryListFilter) (domain.Page[domain.Delivery], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Delivery]{}, errors.New("delivery repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}

	query := client.Collection(deliveriesCollection).Query
	if owner := strings.TrimSpace(filter.OwnerID); owner != "" {
		query = query.Where("ownerId", "==", owner)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		query = query.Where("status", "in", statuses)
	}

	total, err := countDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Delivery]{}, pfirestore.WrapError("deliveries.count", err)
	}

	pager := normalisePager(filter.Pagination)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.deliveries.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}

	items := make([]domain.Delivery, 0, len(docs))
	for _, doc := range docs {
		items = append(items, deliveryFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

// Mutate runs fn against the delivery and its linked order inside one
// transaction; both documents are written back together so delivery-driven
// order transitions land atomically.
func (r *DeliveryRepository) Mutate(ctx context.Context, deliveryID string, fn repositories.DeliveryMutator) (domain.Delivery, error) {
	if r == nil || r.provider == nil {
		return domain.Delivery{}, errors.New("delivery repository not initialised")
	}
	id := strings.TrimSpace(deliveryID)
	if id == "" {
		return domain.Delivery{}, errors.New("delivery repository: delivery id is required")
	}
	if fn == nil {
		return domain.Delivery{}, errors.New("delivery repository: mutate function is required")
	}

	var saved domain.Delivery
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deliveryRef, err := r.deliveries.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		deliverySnap, err := tx.Get(deliveryRef)
		if err != nil {
			return err
		}
		var deliveryDoc deliveryDocument
		if err := deliverySnap.DataTo(&deliveryDoc); err != nil {
			return err
		}
		delivery := deliveryFromDocument(id, deliveryDoc)

		orderRef, err := r.orders.DocumentRef(ctx, delivery.OrderID)
		if err != nil {
			return err
		}
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var orderDoc orderDocument
		if err := orderSnap.DataTo(&orderDoc); err != nil {
			return err
		}
		order := orderFromDocument(delivery.OrderID, orderDoc)

		if err := fn(&delivery, &order); err != nil {
			return err
		}

		now := time.Now().UTC()
		delivery.ID = id
		delivery.UpdatedAt = now
		order.UpdatedAt = now
		if err := tx.Set(deliveryRef, deliveryToDocument(delivery)); err != nil {
			return err
		}
		if err := tx.Set(orderRef, orderToDocument(order)); err != nil {
			return err
		}
		saved = delivery
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	return saved, nil
}

type deliveryDocument struct {
	OrderID           string                   `firestore:"orderId"`
	OwnerID           string                   `firestore:"ownerId"`
	RecipientName     string                   `firestore:"recipientName"`
	RecipientPhone    string                   `firestore:"recipientPhone"`
	Address           deliveryAddressDocument  `firestore:"address"`
	Status            string                   `firestore:"status"`
	ScheduledDate     *time.Time               `firestore:"scheduledDate,omitempty"`
	EstimatedDelivery *time.Time               `firestore:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time               `firestore:"deliveredAt,omitempty"`
	TrackingUpdates   []trackingUpdateDocument `firestore:"trackingUpdates"`
	Notes             string                   `firestore:"notes,omitempty"`
	Cancellation      *cancellationDocument    `firestore:"cancellation,omitempty"`
	CreatedAt         time.Time                `firestore:"createdAt"`
	UpdatedAt         time.Time                `firestore:"updatedAt"`
}

type deliveryAddressDocument struct {
	Street  string `firestore:"street"`
	City    string `firestore:"city"`
	State   string `firestore:"state,omitempty"`
	Zip     string `firestore:"zip,omitempty"`
	Country string `firestore:"country"`
}

type trackingUpdateDocument struct {
	Message   string    `firestore:"message"`
	Timestamp time.Time `firestore:"timestamp"`
	UpdatedBy string    `firestore:"updatedBy,omitempty"`
}

func deliveryToDocument(delivery domain.Delivery) deliveryDocument {
	doc := deliveryDocument{
		OrderID:        delivery.OrderID,
		OwnerID:        delivery.OwnerID,
		RecipientName:  delivery.RecipientName,
		RecipientPhone: delivery.RecipientPhone,
		Address: deliveryAddressDocument{
			Street:  delivery.Address.Street,
			City:    delivery.Address.City,
			State:   delivery.Address.State,
			Zip:     delivery.Address.Zip,
			Country: delivery.Address.Country,
		},
		Status:            string(delivery.Status),
		ScheduledDate:     delivery.ScheduledDate,
		EstimatedDelivery: delivery.EstimatedDelivery,
		DeliveredAt:       delivery.DeliveredAt,
		TrackingUpdates:   make([]trackingUpdateDocument, 0, len(delivery.TrackingUpdates)),
		Notes:             delivery.Notes,
		CreatedAt:         delivery.CreatedAt.UTC(),
		UpdatedAt:         delivery.UpdatedAt.UTC(),
	}
	for _, update := range delivery.TrackingUpdates {
		doc.TrackingUpdates = append(doc.TrackingUpdates, trackingUpdateDocument{
			Message:   update.Message,
			Timestamp: update.Timestamp.UTC(),
			UpdatedBy: update.UpdatedBy,
		})
	}
	if delivery.Cancellation != nil {
		doc.Cancellation = &cancellationDocument{
			By:          string(delivery.Cancellation.By),
			Reason:      delivery.Cancellation.Reason,
			CancelledAt: delivery.Cancellation.CancelledAt.UTC(),
		}
	}
	return doc
}

func deliveryFromDocument(id string, doc deliveryDocument) domain.Delivery {
	delivery := domain.Delivery{
		ID:             id,
		OrderID:        doc.OrderID,
		OwnerID:        doc.OwnerID,
		RecipientName:  doc.RecipientName,
		RecipientPhone: doc.RecipientPhone,
		Address: domain.Address{
			Street:  doc.Address.Street,
			City:    doc.Address.City,
			State:   doc.Address.State,
			Zip:     doc.Address.Zip,
			Country: doc.Address.Country,
		},
		Status:            domain.DeliveryStatus(doc.Status),
		ScheduledDate:     doc.ScheduledDate,
		EstimatedDelivery: doc.EstimatedDelivery,
		DeliveredAt:       doc.DeliveredAt,
		TrackingUpdates:   make([]domain.TrackingUpdate, 0, len(doc.TrackingUpdates)),
		Notes:             doc.Notes,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	for _, update := range doc.TrackingUpdates {
		delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
			Message:   update.Message,
			Timestamp: update.Timestamp,
			UpdatedBy: update.UpdatedBy,
		})
	}
	if doc.Cancellation != nil {
		delivery.Cancellation = &domain.Cancellation{
			By:          domain.CancelActor(doc.Cancellation.By),
			Reason:      doc.Cancellation.Reason,
			CancelledAt: doc.Cancellation.CancelledAt,
		}
	}
	return delivery
}

var _ repositories.DeliveryRepository = (*DeliveryRepository)(nil)
