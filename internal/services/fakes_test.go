package services

import (
	"context"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/storage"
	"github.com/bloomfield/api/internal/repositories"
)

// fakeRepoError satisfies repositories.RepositoryError for in-memory fakes.
type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e fakeRepoError) Error() string       { return e.msg }
func (e fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e fakeRepoError) IsConflict() bool    { return e.conflict }
func (e fakeRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundError(msg string) error { return fakeRepoError{msg: msg, notFound: true} }
func conflictError(msg string) error { return fakeRepoError{msg: msg, conflict: true} }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func staticID(id string) func() string {
	return func() string { return id }
}

func sequenceID(ids ...string) func() string {
	index := 0
	return func() string {
		id := ids[index%len(ids)]
		index++
		return id
	}
}

// fakeItemRepo ---------------------------------------------------------------

type stockAdjustment struct {
	ItemID string
	Delta  int
}

type fakeItemRepo struct {
	items      map[string]domain.Item
	inserted   []domain.Item
	updated    []domain.Item
	deleted    []string
	adjusted   []stockAdjustment
	adjustErr  error
	listPage   domain.Page[domain.Item]
	listErr    error
	lastFilter repositories.ItemListFilter
}

func newFakeItemRepo(items ...domain.Item) *fakeItemRepo {
	repo := &fakeItemRepo{items: map[string]domain.Item{}}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (f *fakeItemRepo) Insert(_ context.Context, item domain.Item) error {
	f.inserted = append(f.inserted, item)
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) Update(_ context.Context, item domain.Item) error {
	if _, ok := f.items[item.ID]; !ok {
		return notFoundError("item " + item.ID)
	}
	f.updated = append(f.updated, item)
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) SoftDelete(_ context.Context, itemID string, _ time.Time) error {
	item, ok := f.items[itemID]
	if !ok {
		return notFoundError("item " + itemID)
	}
	item.IsDeleted = true
	f.items[itemID] = item
	f.deleted = append(f.deleted, itemID)
	return nil
}

func (f *fakeItemRepo) FindByID(_ context.Context, itemID string) (domain.Item, error) {
	item, ok := f.items[itemID]
	if !ok || item.IsDeleted {
		return domain.Item{}, notFoundError("item " + itemID)
	}
	return item, nil
}

func (f *fakeItemRepo) FindBySlug(_ context.Context, slug string) (domain.Item, error) {
	for _, item := range f.items {
		if item.Slug == slug && !item.IsDeleted {
			return item, nil
		}
	}
	return domain.Item{}, notFoundError("slug " + slug)
}

func (f *fakeItemRepo) List(_ context.Context, filter repositories.ItemListFilter) (domain.Page[domain.Item], error) {
	f.lastFilter = filter
	return f.listPage, f.listErr
}

func (f *fakeItemRepo) AdjustStock(_ context.Context, itemID string, delta int) (domain.Item, error) {
	f.adjusted = append(f.adjusted, stockAdjustment{ItemID: itemID, Delta: delta})
	if f.adjustErr != nil {
		return domain.Item{}, f.adjustErr
	}
	item, ok := f.items[itemID]
	if !ok {
		return domain.Item{}, notFoundError("item " + itemID)
	}
	next := item.Stock + delta
	if next < 0 {
		return domain.Item{}, conflictError("stock below zero")
	}
	item.Stock = next
	f.items[itemID] = item
	return item, nil
}

// fakeBouquetRepo ------------------------------------------------------------

type fakeBouquetRepo struct {
	bouquets map[string]domain.Bouquet
	inserted []domain.Bouquet
	listPage domain.Page[domain.Bouquet]
	listErr  error
}

func newFakeBouquetRepo(bouquets ...domain.Bouquet) *fakeBouquetRepo {
	repo := &fakeBouquetRepo{bouquets: map[string]domain.Bouquet{}}
	for _, bouquet := range bouquets {
		repo.bouquets[bouquet.ID] = bouquet
	}
	return repo
}

func (f *fakeBouquetRepo) Insert(_ context.Context, bouquet domain.Bouquet) error {
	f.inserted = append(f.inserted, bouquet)
	f.bouquets[bouquet.ID] = bouquet
	return nil
}

func (f *fakeBouquetRepo) FindByID(_ context.Context, bouquetID string) (domain.Bouquet, error) {
	bouquet, ok := f.bouquets[bouquetID]
	if !ok {
		return domain.Bouquet{}, notFoundError("bouquet " + bouquetID)
	}
	return bouquet, nil
}

func (f *fakeBouquetRepo) ListByOwner(_ context.Context, _ string, _ domain.Pagination) (domain.Page[domain.Bouquet], error) {
	return f.listPage, f.listErr
}

// fakeCartRepo ---------------------------------------------------------------

type fakeCartRepo struct {
	cart   domain.Cart
	exists bool
	getErr error
}

func (f *fakeCartRepo) Get(_ context.Context, ownerID string) (domain.Cart, error) {
	if f.getErr != nil {
		return domain.Cart{}, f.getErr
	}
	if !f.exists {
		return domain.Cart{}, notFoundError("cart " + ownerID)
	}
	return f.cart, nil
}

func (f *fakeCartRepo) Mutate(_ context.Context, ownerID string, fn func(cart *domain.Cart) error) (domain.Cart, error) {
	work := f.cart
	work.Lines = append([]domain.CartLine(nil), f.cart.Lines...)
	if !f.exists {
		work = domain.Cart{OwnerID: ownerID, Lines: []domain.CartLine{}}
	}
	if err := fn(&work); err != nil {
		return domain.Cart{}, err
	}
	work.RecomputeTotal()
	f.cart = work
	f.exists = true
	return work, nil
}

// fakeCheckoutRepo -----------------------------------------------------------

type fakeCheckoutRepo struct {
	cart        domain.Cart
	runErr      error
	result      repositories.CheckoutResult
	cartCleared bool
}

func (f *fakeCheckoutRepo) RunCheckout(_ context.Context, _ string, build repositories.CheckoutBuild) (repositories.CheckoutResult, error) {
	if f.runErr != nil {
		return repositories.CheckoutResult{}, f.runErr
	}
	order, delivery, err := build(f.cart)
	if err != nil {
		return repositories.CheckoutResult{}, err
	}
	if delivery != nil {
		order.DeliveryID = delivery.ID
		delivery.OwnerID = order.OwnerID
	}
	f.cart.Lines = []domain.CartLine{}
	f.cart.Total = 0
	f.cartCleared = true
	f.result = repositories.CheckoutResult{Order: order, Delivery: delivery}
	return f.result, nil
}

// fakeOrderRepo --------------------------------------------------------------

type fakeOrderRepo struct {
	orders     map[string]*domain.Order
	deliveries map[string]*domain.Delivery
	listPage   domain.Page[domain.Order]
	listErr    error
	lastFilter repositories.OrderListFilter
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{
		orders:     map[string]*domain.Order{},
		deliveries: map[string]*domain.Delivery{},
	}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError("order " + orderID)
	}
	return *order, nil
}

func (f *fakeOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	f.lastFilter = filter
	return f.listPage, f.listErr
}

func (f *fakeOrderRepo) Mutate(_ context.Context, orderID string, fn repositories.OrderMutator) (domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFoundError("order " + orderID)
	}
	var delivery *domain.Delivery
	if order.DeliveryID != "" {
		delivery = f.deliveries[order.DeliveryID]
	}
	if err := fn(order, delivery); err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// fakeDeliveryRepo -----------------------------------------------------------

type fakeDeliveryRepo struct {
	deliveries map[string]*domain.Delivery
	orders     map[string]*domain.Order
	listPage   domain.Page[domain.Delivery]
	listErr    error
	lastFilter repositories.DeliveryListFilter
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{
		deliveries: map[string]*domain.Delivery{},
		orders:     map[string]*domain.Order{},
	}
}

func (f *fakeDeliveryRepo) Create(_ context.Context, delivery domain.Delivery, guard repositories.DeliveryGuard) (domain.Delivery, error) {
	order, ok := f.orders[delivery.OrderID]
	if !ok {
		return domain.Delivery{}, notFoundError("order " + delivery.OrderID)
	}
	if err := guard(*order); err != nil {
		return domain.Delivery{}, err
	}
	if order.DeliveryID != "" {
		return domain.Delivery{}, conflictError("order already has a delivery")
	}
	order.DeliveryID = delivery.ID
	delivery.OwnerID = order.OwnerID
	stored := delivery
	f.deliveries[delivery.ID] = &stored
	return delivery, nil
}

func (f *fakeDeliveryRepo) FindByID(_ context.Context, deliveryID string) (domain.Delivery, error) {
	delivery, ok := f.deliveries[deliveryID]
	if !ok {
		return domain.Delivery{}, notFoundError("delivery " + deliveryID)
	}
	return *delivery, nil
}

func (f *fakeDeliveryRepo) FindByOrderID(_ context.Context, orderID string) (domain.Delivery, error) {
	for _, delivery := range f.deliveries {
		if delivery.OrderID == orderID {
			return *delivery, nil
		}
	}
	return domain.Delivery{}, notFoundError("delivery for order " + orderID)
}

func (f *fakeDeliveryRepo) List(_ context.Context, filter repositories.DeliveryListFilter) (domain.Page[domain.Delivery], error) {
	f.lastFilter = filter
	return f.listPage, f.listErr
}

func (f *fakeDeliveryRepo) Mutate(_ context.Context, deliveryID string, fn repositories.DeliveryMutator) (domain.Delivery, error) {
	delivery, ok := f.deliveries[deliveryID]
	if !ok {
		return domain.Delivery{}, notFoundError("delivery " + deliveryID)
	}
	order, ok := f.orders[delivery.OrderID]
	if !ok {
		return domain.Delivery{}, notFoundError("order " + delivery.OrderID)
	}
	if err := fn(delivery, order); err != nil {
		return domain.Delivery{}, err
	}
	return *delivery, nil
}

// fakeFavoritesRepo ----------------------------------------------------------

type fakeFavoritesRepo struct {
	favorites domain.Favorites
	exists    bool
}

func (f *fakeFavoritesRepo) Get(_ context.Context, ownerID string) (domain.Favorites, error) {
	if !f.exists {
		return domain.Favorites{}, notFoundError("favorites " + ownerID)
	}
	return f.favorites, nil
}

func (f *fakeFavoritesRepo) Mutate(_ context.Context, ownerID string, fn func(favorites *domain.Favorites) error) (domain.Favorites, error) {
	work := f.favorites
	work.Entries = append([]domain.FavoriteEntry(nil), f.favorites.Entries...)
	if !f.exists {
		work = domain.Favorites{OwnerID: ownerID, Entries: []domain.FavoriteEntry{}}
	}
	if err := fn(&work); err != nil {
		return domain.Favorites{}, err
	}
	f.favorites = work
	f.exists = true
	return work, nil
}

// fakeNotificationRepo -------------------------------------------------------

type fakeNotificationRepo struct {
	notifications map[string]domain.Notification
	inserted      []domain.Notification
	updated       []domain.Notification
	listPage      domain.Page[domain.Notification]
	listErr       error
	lastFilter    repositories.NotificationListFilter
}

func newFakeNotificationRepo(notifications ...domain.Notification) *fakeNotificationRepo {
	repo := &fakeNotificationRepo{notifications: map[string]domain.Notification{}}
	for _, notification := range notifications {
		repo.notifications[notification.ID] = notification
	}
	return repo
}

func (f *fakeNotificationRepo) Insert(_ context.Context, notification domain.Notification) error {
	f.inserted = append(f.inserted, notification)
	f.notifications[notification.ID] = notification
	return nil
}

func (f *fakeNotificationRepo) Update(_ context.Context, notification domain.Notification) error {
	if _, ok := f.notifications[notification.ID]; !ok {
		return notFoundError("notification " + notification.ID)
	}
	f.updated = append(f.updated, notification)
	f.notifications[notification.ID] = notification
	return nil
}

func (f *fakeNotificationRepo) FindByID(_ context.Context, notificationID string) (domain.Notification, error) {
	notification, ok := f.notifications[notificationID]
	if !ok {
		return domain.Notification{}, notFoundError("notification " + notificationID)
	}
	return notification, nil
}

func (f *fakeNotificationRepo) List(_ context.Context, filter repositories.NotificationListFilter) (domain.Page[domain.Notification], error) {
	f.lastFilter = filter
	return f.listPage, f.listErr
}

// Event publisher and audit fakes --------------------------------------------

type fakeEvents struct {
	events []StoreEvent
	err    error
}

func (f *fakeEvents) PublishEvent(_ context.Context, event StoreEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type recordingAudit struct {
	records []AuditLogRecord
}

func (r *recordingAudit) Record(_ context.Context, record AuditLogRecord) {
	r.records = append(r.records, record)
}

func (r *recordingAudit) List(context.Context, AuditLogFilter) (domain.Page[domain.AuditLogEntry], error) {
	return domain.Page[domain.AuditLogEntry]{}, nil
}

// fakeSigner -----------------------------------------------------------------

type fakeSigner struct {
	bucket string
	object string
	opts   storage.SignedURLOptions
	result storage.SignedURLResult
	err    error
}

func (f *fakeSigner) SignedURL(_ context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error) {
	f.bucket = bucket
	f.object = object
	f.opts = opts
	return f.result, f.err
}

var (
	_ repositories.ItemRepository         = (*fakeItemRepo)(nil)
	_ repositories.BouquetRepository      = (*fakeBouquetRepo)(nil)
	_ repositories.CartRepository         = (*fakeCartRepo)(nil)
	_ repositories.CheckoutRepository     = (*fakeCheckoutRepo)(nil)
	_ repositories.OrderRepository        = (*fakeOrderRepo)(nil)
	_ repositories.DeliveryRepository     = (*fakeDeliveryRepo)(nil)
	_ repositories.FavoritesRepository    = (*fakeFavoritesRepo)(nil)
	_ repositories.NotificationRepository = (*fakeNotificationRepo)(nil)
	_ EventPublisher                      = (*fakeEvents)(nil)
	_ AuditLogService                     = (*recordingAudit)(nil)
	_ ObjectURLSigner                     = (*fakeSigner)(nil)
)
