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

const ordersCollection = "orders"

// OrderRepository persists order records in Firestore. Mutations run inside
// transactions so concurrent status writes on the same order cannot
// interleave; when the order has a linked delivery the mutator sees and
// writes it in the same transaction.
type OrderRepository struct {
	provider   *pfirestore.Provider
	orders     *pfirestore.BaseRepository[orderDocument]
	deliveries *pfirestore.BaseRepository[deliveryDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:   provider,
		orders:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		deliveries: pfirestore.NewBaseRepository[deliveryDocument](provider, deliveriesCollection, nil, nil),
	}, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// List returns a page of orders newest first, with the true total computed
// by a count aggregation over the same predicate.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	query := client.Collection(ordersCollection).Query
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
		return domain.Page[domain.Order]{}, pfirestore.WrapError("orders.count", err)
	}

	pager := normalisePager(filter.Pagination)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.orders.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, orderFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

// Mutate runs fn against the order (and its linked delivery, when present)
// inside one transaction and persists whatever fn changed.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutator) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order repository: mutate function is required")
	}

	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, id)
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
		order := orderFromDocument(id, orderDoc)

		var (
			delivery    *domain.Delivery
			deliveryRef *firestore.DocumentRef
		)
		if order.DeliveryID != "" {
			deliveryRef, err = r.deliveries.DocumentRef(ctx, order.DeliveryID)
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
			hydrated := deliveryFromDocument(order.DeliveryID, deliveryDoc)
			delivery = &hydrated
		}

		if err := fn(&order, delivery); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.ID = id
		order.UpdatedAt = now
		if err := tx.Set(orderRef, orderToDocument(order)); err != nil {
			return err
		}
		if delivery != nil {
			delivery.ID = order.DeliveryID
			delivery.UpdatedAt = now
			if err := tx.Set(deliveryRef, deliveryToDocument(*delivery)); err != nil {
				return err
			}
		}
		saved = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

type orderDocument struct {
	Number        string                `firestore:"number"`
	OwnerID       string                `firestore:"ownerId"`
	Lines         []orderLineDocument   `firestore:"lines"`
	TotalAmount   int64                 `firestore:"totalAmount"`
	Status        string                `firestore:"status"`
	PaymentStatus string                `firestore:"paymentStatus"`
	PaymentMethod string                `firestore:"paymentMethod"`
	Notes         string                `firestore:"notes,omitempty"`
	DeliveryID    string                `firestore:"deliveryId,omitempty"`
	Cancellation  *cancellationDocument `firestore:"cancellation,omitempty"`
	CreatedAt     time.Time             `firestore:"createdAt"`
	UpdatedAt     time.Time             `firestore:"updatedAt"`
}

type orderLineDocument struct {
	Kind      string `firestore:"kind"`
	RefID     string `firestore:"refId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	Subtotal  int64  `firestore:"subtotal"`
	ImageURL  string `firestore:"imageUrl,omitempty"`
}

type cancellationDocument struct {
	By          string    `firestore:"by"`
	Reason      string    `firestore:"reason"`
	CancelledAt time.Time `firestore:"cancelledAt"`
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:        order.Number,
		OwnerID:       order.OwnerID,
		Lines:         make([]orderLineDocument, 0, len(order.Lines)),
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: string(order.PaymentMethod),
		Notes:         order.Notes,
		DeliveryID:    order.DeliveryID,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			Kind:      string(line.Kind),
			RefID:     line.RefID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
			ImageURL:  line.ImageURL,
		})
	}
	if order.Cancellation != nil {
		doc.Cancellation = &cancellationDocument{
			By:          string(order.Cancellation.By),
			Reason:      order.Cancellation.Reason,
			CancelledAt: order.Cancellation.CancelledAt.UTC(),
		}
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:            id,
		Number:        doc.Number,
		OwnerID:       doc.OwnerID,
		Lines:         make([]domain.OrderLine, 0, len(doc.Lines)),
		TotalAmount:   doc.TotalAmount,
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		Notes:         doc.Notes,
		DeliveryID:    doc.DeliveryID,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, line := range doc.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			Kind:      domain.LineKind(line.Kind),
			RefID:     line.RefID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
			ImageURL:  line.ImageURL,
		})
	}
	if doc.Cancellation != nil {
		order.Cancellation = &domain.Cancellation{
			By:          domain.CancelActor(doc.Cancellation.By),
			Reason:      doc.Cancellation.Reason,
			CancelledAt: doc.Cancellation.CancelledAt,
		}
	}
	return order
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
