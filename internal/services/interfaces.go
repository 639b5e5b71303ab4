package services

import (
	"context"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	LineKind           = domain.LineKind
	Order              = domain.Order
	OrderLine          = domain.OrderLine
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	Delivery           = domain.Delivery
	DeliveryStatus     = domain.DeliveryStatus
	TrackingUpdate     = domain.TrackingUpdate
	Address            = domain.Address
	Item               = domain.Item
	Bouquet            = domain.Bouquet
	Favorites          = domain.Favorites
	Notification       = domain.Notification
	NotificationType   = domain.NotificationType
	NotificationTarget = domain.NotificationTarget
	SystemHealthReport = domain.SystemHealthReport
	AuditLogEntry      = domain.AuditLogEntry
)

// CartService manages the single mutable basket per customer while enforcing
// stock and quantity rules.
type CartService interface {
	GetCart(ctx context.Context, ownerID string) (Cart, error)
	AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error)
	UpdateLineQuantity(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error)
	RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error)
	ClearCart(ctx context.Context, ownerID string) (Cart, error)
}

// CheckoutService converts a basket into an order, optionally with a linked
// delivery record, in one transaction.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// OrderService covers order reads, the staff status table, and cancellation
// for both roles.
type OrderService interface {
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.Page[Order], error)
	TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	IssueReceiptURL(ctx context.Context, cmd ReceiptDownloadCommand) (SignedDownload, error)
}

// DeliveryService owns the courier-side lifecycle, including the forced order
// transitions that delivery progress drives.
type DeliveryService interface {
	CreateDelivery(ctx context.Context, cmd CreateDeliveryCommand) (Delivery, error)
	GetDelivery(ctx context.Context, cmd GetDeliveryCommand) (Delivery, error)
	GetDeliveryByOrder(ctx context.Context, cmd GetDeliveryByOrderCommand) (Delivery, error)
	ListDeliveries(ctx context.Context, cmd ListDeliveriesCommand) (domain.Page[Delivery], error)
	UpdateStatus(ctx context.Context, cmd UpdateDeliveryStatusCommand) (Delivery, error)
	AppendTracking(ctx context.Context, cmd AppendTrackingCommand) (Delivery, error)
	Cancel(ctx context.Context, cmd CancelDeliveryCommand) (Delivery, error)
}

// CatalogService manages items and custom bouquets, including the stock gate
// other services consult.
type CatalogService interface {
	CreateItem(ctx context.Context, cmd UpsertItemCommand) (Item, error)
	UpdateItem(ctx context.Context, cmd UpsertItemCommand) (Item, error)
	DeleteItem(ctx context.Context, cmd DeleteItemCommand) error
	GetItem(ctx context.Context, itemID string) (Item, error)
	GetItemBySlug(ctx context.Context, slug string) (Item, error)
	ListItems(ctx context.Context, cmd ListItemsCommand) (domain.Page[Item], error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Item, error)
	IssueImageUploadURL(ctx context.Context, cmd ItemImageUploadCommand) (SignedUpload, error)

	CreateBouquet(ctx context.Context, cmd CreateBouquetCommand) (Bouquet, error)
	GetBouquet(ctx context.Context, cmd GetBouquetCommand) (Bouquet, error)
	ListBouquets(ctx context.Context, ownerID string, pager Pagination) (domain.Page[Bouquet], error)
}

// FavoritesService manages the per-customer favorites list.
type FavoritesService interface {
	ListFavorites(ctx context.Context, ownerID string) (Favorites, error)
	AddFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (Favorites, error)
	RemoveFavorite(ctx context.Context, cmd ToggleFavoriteCommand) (Favorites, error)
}

// NotificationService manages storefront announcements.
type NotificationService interface {
	CreateNotification(ctx context.Context, cmd UpsertNotificationCommand) (Notification, error)
	UpdateNotification(ctx context.Context, cmd UpsertNotificationCommand) (Notification, error)
	GetNotification(ctx context.Context, notificationID string) (Notification, error)
	ListNotifications(ctx context.Context, cmd ListNotificationsCommand) (domain.Page[Notification], error)
}

// AuditLogService centralizes immutable audit log persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.Page[AuditLogEntry], error)
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// EventPublisher accepts storefront domain events for asynchronous fanout.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event StoreEvent) error
}

// StoreEvent captures metadata for emitted storefront domain events.
type StoreEvent struct {
	Type       string
	EntityID   string
	OwnerID    string
	ActorID    string
	OccurredAt time.Time
	Metadata   map[string]any
}

// SignedUpload is a time-limited URL for uploading a catalog image.
type SignedUpload struct {
	URL         string
	ObjectPath  string
	ContentType string
	ExpiresAt   time.Time
}

// SignedDownload is a time-limited URL for fetching a stored document.
type SignedDownload struct {
	URL        string
	ObjectPath string
	ExpiresAt  time.Time
}

// Command and DTO definitions ------------------------------------------------

type AddCartLineCommand struct {
	OwnerID  string
	Kind     LineKind
	RefID    string
	Quantity int
}

type UpdateCartLineCommand struct {
	OwnerID  string
	RefID    string
	Quantity int
}

type RemoveCartLineCommand struct {
	OwnerID string
	RefID   string
}

type CheckoutCommand struct {
	OwnerID       string
	PaymentMethod PaymentMethod
	Notes         string
	// Delivery is nil for pickup orders; no delivery record is created then.
	Delivery *DeliveryDetails
}

// DeliveryDetails carries the courier information a customer supplies at
// checkout when the order should be delivered.
type DeliveryDetails struct {
	RecipientName  string
	RecipientPhone string
	Address        Address
	ScheduledDate  *time.Time
	Notes          string
}

// CheckoutResult reports the persisted order and, when delivery details were
// supplied, the delivery created alongside it.
type CheckoutResult struct {
	Order    Order
	Delivery *Delivery
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type ReceiptDownloadCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type ListOrdersCommand struct {
	ActorID    string
	IsAdmin    bool
	OwnerID    string
	Status     []OrderStatus
	Pagination Pagination
}

type TransitionOrderCommand struct {
	OrderID string
	Target  OrderStatus
	ActorID string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Actor   domain.CancelActor
	Reason  string
}

type CreateDeliveryCommand struct {
	OrderID           string
	RecipientName     string
	RecipientPhone    string
	Address           Address
	ScheduledDate     *time.Time
	EstimatedDelivery *time.Time
	Notes             string
	ActorID           string
}

type GetDeliveryCommand struct {
	DeliveryID string
	ActorID    string
	IsAdmin    bool
}

type GetDeliveryByOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type ListDeliveriesCommand struct {
	OwnerID    string
	Status     []DeliveryStatus
	Pagination Pagination
}

type UpdateDeliveryStatusCommand struct {
	DeliveryID        string
	Target            DeliveryStatus
	EstimatedDelivery *time.Time
	ActorID           string
}

type AppendTrackingCommand struct {
	DeliveryID string
	Message    string
	ActorID    string
}

type CancelDeliveryCommand struct {
	DeliveryID string
	Reason     string
	ActorID    string
}

type UpsertItemCommand struct {
	ItemID          string
	Name            string
	Slug            string
	Description     string
	Price           int64
	DiscountPrice   *int64
	Category        string
	Images          []string
	IsFeatured      bool
	IsAvailable     bool
	Stock           int
	PreparationTime int
	ActorID         string
}

type DeleteItemCommand struct {
	ItemID  string
	ActorID string
}

type ListItemsCommand struct {
	Category      string
	FeaturedOnly  bool
	AvailableOnly bool
	IncludeHidden bool
	Pagination    Pagination
}

type AdjustStockCommand struct {
	ItemID  string
	Delta   int
	ActorID string
}

type ItemImageUploadCommand struct {
	ItemID      string
	FileName    string
	ContentType string
	ActorID     string
}

type CreateBouquetCommand struct {
	OwnerID       string
	Flowers       []domain.BouquetFlower
	Wrapping      domain.BouquetWrapping
	Note          string
	RecipientName string
}

type GetBouquetCommand struct {
	BouquetID string
	ActorID   string
	IsAdmin   bool
}

type ToggleFavoriteCommand struct {
	OwnerID string
	Kind    LineKind
	RefID   string
}

type UpsertNotificationCommand struct {
	NotificationID string
	Title          string
	Message        string
	Type           NotificationType
	Target         NotificationTarget
	IsActive       bool
	ActorID        string
}

type ListNotificationsCommand struct {
	ActiveOnly bool
	Targets    []NotificationTarget
	Pagination Pagination
}

// AuditLogRecord defines the payload accepted by the audit writer service.
type AuditLogRecord struct {
	Actor                 string
	ActorType             string
	Action                string
	TargetRef             string
	Severity              string
	RequestID             string
	OccurredAt            time.Time
	Metadata              map[string]any
	SensitiveMetadataKeys []string
}

type AuditLogFilter = repositories.AuditLogFilter

type CounterCommand struct {
	CounterID string
	Step      int64
}
