package repositories

import (
	"context"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Checkout() CheckoutRepository
	Orders() OrderRepository
	Deliveries() DeliveryRepository
	Items() ItemRepository
	Bouquets() BouquetRepository
	Favorites() FavoritesRepository
	Notifications() NotificationRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository persists the single cart per owner. The backing document is
// keyed by the owner id, so the one-cart-per-owner rule holds at the storage
// layer even under concurrent creation.
type CartRepository interface {
	// Get returns the owner's cart, or an IsNotFound error when the owner has
	// never carted anything.
	Get(ctx context.Context, ownerID string) (domain.Cart, error)
	// Mutate runs fn against the current cart inside a transactional
	// read-modify-write and persists the result. A missing cart is presented
	// to fn as an empty cart for the owner (lazy creation). Errors returned
	// by fn abort the transaction and pass through unchanged.
	Mutate(ctx context.Context, ownerID string, fn func(cart *domain.Cart) error) (domain.Cart, error)
}

// CheckoutBuild assembles the order (and optional delivery) from the cart
// the transaction observed. Returning an error aborts the checkout with no
// writes.
type CheckoutBuild func(cart domain.Cart) (domain.Order, *domain.Delivery, error)

// CheckoutResult reports the entities persisted by a checkout transaction.
type CheckoutResult struct {
	Order    domain.Order
	Delivery *domain.Delivery
}

// CheckoutRepository commits a checkout as a single transaction: read the
// cart, create the order, optionally create the linked delivery (stamping
// the order's delivery back-reference), and empty the cart. A failure at any
// point leaves every entity untouched.
type CheckoutRepository interface {
	RunCheckout(ctx context.Context, ownerID string, build CheckoutBuild) (CheckoutResult, error)
}

// OrderMutator mutates an order and, when the order has a linked delivery,
// that delivery in the same transaction. delivery is nil when no delivery is
// linked; mutations to both are persisted together.
type OrderMutator func(order *domain.Order, delivery *domain.Delivery) error

// OrderRepository persists order records and provides query helpers for
// customers and admins. Status transitions run through Mutate so concurrent
// writers cannot interleave on the same order.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	Mutate(ctx context.Context, orderID string, fn OrderMutator) (domain.Order, error)
}

// DeliveryGuard inspects the order a new delivery would attach to before the
// transaction creates anything. Returning an error aborts the creation.
type DeliveryGuard func(order domain.Order) error

// DeliveryMutator mutates a delivery and its linked order in one
// transaction; both are persisted together.
type DeliveryMutator func(delivery *domain.Delivery, order *domain.Order) error

// DeliveryRepository persists delivery records. Uniqueness (at most one
// delivery per order) is enforced inside the create transaction by
// checking-and-setting the order's delivery back-reference, so concurrent
// creation attempts cannot both succeed.
type DeliveryRepository interface {
	// Create attaches the delivery to delivery.OrderID. Returns an
	// IsNotFound error when the order is absent and an IsConflict error when
	// the order already has a delivery.
	Create(ctx context.Context, delivery domain.Delivery, guard DeliveryGuard) (domain.Delivery, error)
	FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error)
	FindByOrderID(ctx context.Context, orderID string) (domain.Delivery, error)
	List(ctx context.Context, filter DeliveryListFilter) (domain.Page[domain.Delivery], error)
	Mutate(ctx context.Context, deliveryID string, fn DeliveryMutator) (domain.Delivery, error)
}

// ItemRepository stores catalog items with soft deletion.
type ItemRepository interface {
	Insert(ctx context.Context, item domain.Item) error
	Update(ctx context.Context, item domain.Item) error
	SoftDelete(ctx context.Context, itemID string, deletedAt time.Time) error
	FindByID(ctx context.Context, itemID string) (domain.Item, error)
	FindBySlug(ctx context.Context, slug string) (domain.Item, error)
	List(ctx context.Context, filter ItemListFilter) (domain.Page[domain.Item], error)
	// AdjustStock applies delta to the stock level transactionally and
	// returns the updated item. The resulting stock never goes below zero;
	// a delta that would do so yields an IsConflict error.
	AdjustStock(ctx context.Context, itemID string, delta int) (domain.Item, error)
}

// BouquetRepository stores customer-configured bouquets.
type BouquetRepository interface {
	Insert(ctx context.Context, bouquet domain.Bouquet) error
	FindByID(ctx context.Context, bouquetID string) (domain.Bouquet, error)
	ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.Page[domain.Bouquet], error)
}

// FavoritesRepository stores the single favorites list per owner, keyed by
// owner id like carts.
type FavoritesRepository interface {
	Get(ctx context.Context, ownerID string) (domain.Favorites, error)
	Mutate(ctx context.Context, ownerID string, fn func(favorites *domain.Favorites) error) (domain.Favorites, error)
}

// NotificationRepository stores admin-authored announcements.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	Update(ctx context.Context, notification domain.Notification) error
	FindByID(ctx context.Context, notificationID string) (domain.Notification, error)
	List(ctx context.Context, filter NotificationListFilter) (domain.Page[domain.Notification], error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.Page[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	OwnerID    string
	Status     []domain.OrderStatus
	Pagination domain.Pagination
}

type DeliveryListFilter struct {
	OwnerID    string
	Status     []domain.DeliveryStatus
	Pagination domain.Pagination
}

type ItemListFilter struct {
	Category      string
	FeaturedOnly  bool
	AvailableOnly bool
	IncludeHidden bool
	Pagination    domain.Pagination
}

type NotificationListFilter struct {
	ActiveOnly bool
	Targets    []domain.NotificationTarget
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
