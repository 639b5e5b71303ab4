package domain

import (
	"time"
)

// Pagination defines standard 1-based paging inputs for list operations.
type Pagination struct {
	Page  int
	Limit int
}

// Page wraps a result slice with offset pagination metadata. TotalPages
// always reflects the true count even when the requested page is past the
// end and Items is empty.
type Page[T any] struct {
	Items      []T
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// LineKind discriminates the two priceable entities a cart or order line can
// reference.
type LineKind string

const (
	// LineKindProduct references a catalog item.
	LineKindProduct LineKind = "product"
	// LineKindCustom references a customer-configured bouquet.
	LineKindCustom LineKind = "custom"
)

// ValidLineKind reports whether the value is a known line kind.
func ValidLineKind(kind LineKind) bool {
	return kind == LineKindProduct || kind == LineKindCustom
}

// CartLine is one priced entry in a customer's basket. UnitPrice is a
// snapshot taken when the line was added and is never re-read from the
// catalog afterwards.
type CartLine struct {
	Kind      LineKind
	RefID     string
	Quantity  int
	UnitPrice int64
	Subtotal  int64
}

// Cart holds the single active basket for an owner. Total is derived and
// recomputed from the lines on every mutation.
type Cart struct {
	OwnerID   string
	Lines     []CartLine
	Total     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecomputeTotal resets Total from the line subtotals.
func (c *Cart) RecomputeTotal() {
	var total int64
	for _, line := range c.Lines {
		total += line.Subtotal
	}
	c.Total = total
}

// OrderStatus enumerates the order fulfilment lifecycle.
type OrderStatus string

const (
	// OrderStatusPending is the initial status assigned at checkout.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates staff accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the arrangement is being assembled.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusOutForDelivery is set only by delivery-driven writes.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered is terminal and set only by delivery-driven writes.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal and absorbing.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further order transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ValidOrderStatus reports whether the value is a known order status.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus records the settlement state of an order. It is recorded
// only; reconciliation with a processor happens outside this service.
type PaymentStatus string

const (
	// PaymentStatusUnpaid marks orders to be settled on delivery.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid marks orders settled online at checkout.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded marks orders refunded after cancellation.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod enumerates how the customer chose to pay.
type PaymentMethod string

const (
	// PaymentMethodPayOnDelivery settles in person when the courier arrives.
	PaymentMethodPayOnDelivery PaymentMethod = "pay_on_delivery"
	// PaymentMethodOnline settles through the storefront before checkout.
	PaymentMethodOnline PaymentMethod = "online"
)

// ValidPaymentMethod reports whether the value is a known payment method.
func ValidPaymentMethod(method PaymentMethod) bool {
	return method == PaymentMethodPayOnDelivery || method == PaymentMethodOnline
}

// CancelActor identifies which role recorded a cancellation.
type CancelActor string

const (
	// CancelActorCustomer marks a cancellation requested by the owner.
	CancelActorCustomer CancelActor = "customer"
	// CancelActorAdmin marks a cancellation performed by staff.
	CancelActorAdmin CancelActor = "admin"
)

// Cancellation is write-once metadata recorded when an order or delivery is
// cancelled.
type Cancellation struct {
	By          CancelActor
	Reason      string
	CancelledAt time.Time
}

// OrderLine is an immutable snapshot of a cart line frozen at checkout.
// Name, price, and image are copied values and survive later catalog edits
// or deletions.
type OrderLine struct {
	Kind      LineKind
	RefID     string
	Name      string
	UnitPrice int64
	Quantity  int
	Subtotal  int64
	ImageURL  string
}

// Order is created exactly once per checkout. Everything except status,
// payment status, and cancellation metadata is immutable after creation.
type Order struct {
	ID            string
	Number        string
	OwnerID       string
	Lines         []OrderLine
	TotalAmount   int64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Notes         string
	DeliveryID    string
	Cancellation  *Cancellation
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryStatus enumerates the courier-side lifecycle.
type DeliveryStatus string

const (
	// DeliveryStatusPending is the initial delivery status.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusAssigned indicates a courier has been assigned.
	DeliveryStatusAssigned DeliveryStatus = "assigned"
	// DeliveryStatusInTransit indicates the package left the shop.
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	// DeliveryStatusDelivered is terminal for status mutation.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed marks a failed attempt; it is not terminal and a
	// retry or cancellation may follow.
	DeliveryStatusFailed DeliveryStatus = "failed"
	// DeliveryStatusCancelled freezes the record entirely.
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// IsTerminal reports whether the delivery accepts no further status writes.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// ValidDeliveryStatus reports whether the value is a known delivery status.
func ValidDeliveryStatus(status DeliveryStatus) bool {
	switch status {
	case DeliveryStatusPending, DeliveryStatusAssigned, DeliveryStatusInTransit,
		DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusCancelled:
		return true
	default:
		return false
	}
}

// Address is the postal destination for a delivery.
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// TrackingUpdate is an append-only timestamped note on a delivery. Entries
// are never edited or removed once written.
type TrackingUpdate struct {
	Message   string
	Timestamp time.Time
	UpdatedBy string
}

// Delivery tracks the courier record linked 1:1 with an order. OwnerID is
// denormalized from the order so ownership checks need no join.
type Delivery struct {
	ID                string
	OrderID           string
	OwnerID           string
	RecipientName     string
	RecipientPhone    string
	Address           Address
	Status            DeliveryStatus
	ScheduledDate     *time.Time
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
	TrackingUpdates   []TrackingUpdate
	Notes             string
	Cancellation      *Cancellation
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is a catalog product. Price fields are minor currency units.
type Item struct {
	ID              string
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
	Rating          float64
	NumReviews      int
	PreparationTime int
	CreatedBy       string
	IsDeleted       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectivePrice returns the discount price when one is set, else the list
// price.
func (i Item) EffectivePrice() int64 {
	if i.DiscountPrice != nil && *i.DiscountPrice > 0 {
		return *i.DiscountPrice
	}
	return i.Price
}

// BouquetFlower is one stem selection inside a custom bouquet.
type BouquetFlower struct {
	FlowerID     string
	Name         string
	Count        int
	PricePerStem int64
}

// BouquetWrapping is the wrapping selection for a custom bouquet.
type BouquetWrapping struct {
	ID    string
	Name  string
	Price int64
}

// Bouquet is a customer-configured arrangement that cart lines may reference
// with LineKindCustom.
type Bouquet struct {
	ID            string
	OwnerID       string
	Flowers       []BouquetFlower
	Wrapping      BouquetWrapping
	Note          string
	RecipientName string
	TotalPrice    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FavoriteEntry points at a product or bouquet on a customer's list.
type FavoriteEntry struct {
	Kind  LineKind
	RefID string
}

// Favorites holds the single favorites list per owner.
type Favorites struct {
	OwnerID   string
	Entries   []FavoriteEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotificationType classifies an announcement for client rendering.
type NotificationType string

const (
	// NotificationTypeInfo is a neutral announcement.
	NotificationTypeInfo NotificationType = "info"
	// NotificationTypeWarning flags service disruptions.
	NotificationTypeWarning NotificationType = "warning"
	// NotificationTypeSuccess celebrates milestones.
	NotificationTypeSuccess NotificationType = "success"
	// NotificationTypePromo carries promotional content.
	NotificationTypePromo NotificationType = "promo"
)

// ValidNotificationType reports whether the value is a known type.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeWarning, NotificationTypeSuccess, NotificationTypePromo:
		return true
	default:
		return false
	}
}

// NotificationTarget scopes who should see an announcement.
type NotificationTarget string

const (
	// NotificationTargetAll shows the announcement to everyone.
	NotificationTargetAll NotificationTarget = "all"
	// NotificationTargetCustomer restricts it to signed-in customers.
	NotificationTargetCustomer NotificationTarget = "customer"
)

// Notification is an admin-authored announcement.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Type      NotificationType
	Target    NotificationTarget
	IsActive  bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// AuditLogEntry stores normalized audit information for admin review. The
// service keeps the AccessDenied/NotFound distinction here even when the
// HTTP boundary collapses the two.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	Severity  string
	RequestID string
	CreatedAt time.Time
}
