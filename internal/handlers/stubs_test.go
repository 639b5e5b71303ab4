package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/auth"
	"github.com/bloomfield/api/internal/services"
)

// withIdentity attaches an authenticated identity the way the auth middleware
// would before the handler runs.
func withIdentity(r *http.Request, uid string, roles ...string) *http.Request {
	if len(roles) == 0 {
		roles = []string{auth.RoleCustomer}
	}
	identity := &auth.Identity{UID: uid, Roles: roles}
	return r.WithContext(auth.WithIdentity(r.Context(), identity))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (body %q)", err, rr.Body.String())
	}
	return body
}

type stubCartService struct {
	getCart    func(ctx context.Context, ownerID string) (domain.Cart, error)
	addLine    func(ctx context.Context, cmd services.AddCartLineCommand) (domain.Cart, error)
	updateLine func(ctx context.Context, cmd services.UpdateCartLineCommand) (domain.Cart, error)
	removeLine func(ctx context.Context, cmd services.RemoveCartLineCommand) (domain.Cart, error)
	clearCart  func(ctx context.Context, ownerID string) (domain.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if s.getCart == nil {
		return domain.Cart{OwnerID: ownerID}, nil
	}
	return s.getCart(ctx, ownerID)
}

func (s *stubCartService) AddLine(ctx context.Context, cmd services.AddCartLineCommand) (domain.Cart, error) {
	if s.addLine == nil {
		return domain.Cart{OwnerID: cmd.OwnerID}, nil
	}
	return s.addLine(ctx, cmd)
}

func (s *stubCartService) UpdateLineQuantity(ctx context.Context, cmd services.UpdateCartLineCommand) (domain.Cart, error) {
	if s.updateLine == nil {
		return domain.Cart{OwnerID: cmd.OwnerID}, nil
	}
	return s.updateLine(ctx, cmd)
}

func (s *stubCartService) RemoveLine(ctx context.Context, cmd services.RemoveCartLineCommand) (domain.Cart, error) {
	if s.removeLine == nil {
		return domain.Cart{OwnerID: cmd.OwnerID}, nil
	}
	return s.removeLine(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if s.clearCart == nil {
		return domain.Cart{OwnerID: ownerID}, nil
	}
	return s.clearCart(ctx, ownerID)
}

type stubCheckoutService struct {
	checkout func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkout == nil {
		return services.CheckoutResult{}, nil
	}
	return s.checkout(ctx, cmd)
}

type stubOrderService struct {
	getOrder     func(ctx context.Context, cmd services.GetOrderCommand) (domain.Order, error)
	listOrders   func(ctx context.Context, cmd services.ListOrdersCommand) (domain.Page[domain.Order], error)
	transition   func(ctx context.Context, cmd services.TransitionOrderCommand) (domain.Order, error)
	cancel       func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
	issueReceipt func(ctx context.Context, cmd services.ReceiptDownloadCommand) (services.SignedDownload, error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (domain.Order, error) {
	if s.getOrder == nil {
		return domain.Order{ID: cmd.OrderID}, nil
	}
	return s.getOrder(ctx, cmd)
}

func (s *stubOrderService) ListOrders(ctx context.Context, cmd services.ListOrdersCommand) (domain.Page[domain.Order], error) {
	if s.listOrders == nil {
		return domain.Page[domain.Order]{Items: []domain.Order{}}, nil
	}
	return s.listOrders(ctx, cmd)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.TransitionOrderCommand) (domain.Order, error) {
	if s.transition == nil {
		return domain.Order{ID: cmd.OrderID}, nil
	}
	return s.transition(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancel == nil {
		return domain.Order{ID: cmd.OrderID}, nil
	}
	return s.cancel(ctx, cmd)
}

func (s *stubOrderService) IssueReceiptURL(ctx context.Context, cmd services.ReceiptDownloadCommand) (services.SignedDownload, error) {
	if s.issueReceipt == nil {
		return services.SignedDownload{}, nil
	}
	return s.issueReceipt(ctx, cmd)
}

type stubDeliveryService struct {
	create     func(ctx context.Context, cmd services.CreateDeliveryCommand) (domain.Delivery, error)
	get        func(ctx context.Context, cmd services.GetDeliveryCommand) (domain.Delivery, error)
	getByOrder func(ctx context.Context, cmd services.GetDeliveryByOrderCommand) (domain.Delivery, error)
	list       func(ctx context.Context, cmd services.ListDeliveriesCommand) (domain.Page[domain.Delivery], error)
	update     func(ctx context.Context, cmd services.UpdateDeliveryStatusCommand) (domain.Delivery, error)
	appendTrk  func(ctx context.Context, cmd services.AppendTrackingCommand) (domain.Delivery, error)
	cancel     func(ctx context.Context, cmd services.CancelDeliveryCommand) (domain.Delivery, error)
}

func (s *stubDeliveryService) CreateDelivery(ctx context.Context, cmd services.CreateDeliveryCommand) (domain.Delivery, error) {
	if s.create == nil {
		return domain.Delivery{OrderID: cmd.OrderID}, nil
	}
	return s.create(ctx, cmd)
}

func (s *stubDeliveryService) GetDelivery(ctx context.Context, cmd services.GetDeliveryCommand) (domain.Delivery, error) {
	if s.get == nil {
		return domain.Delivery{ID: cmd.DeliveryID}, nil
	}
	return s.get(ctx, cmd)
}

func (s *stubDeliveryService) GetDeliveryByOrder(ctx context.Context, cmd services.GetDeliveryByOrderCommand) (domain.Delivery, error) {
	if s.getByOrder == nil {
		return domain.Delivery{OrderID: cmd.OrderID}, nil
	}
	return s.getByOrder(ctx, cmd)
}

func (s *stubDeliveryService) ListDeliveries(ctx context.Context, cmd services.ListDeliveriesCommand) (domain.Page[domain.Delivery], error) {
	if s.list == nil {
		return domain.Page[domain.Delivery]{Items: []domain.Delivery{}}, nil
	}
	return s.list(ctx, cmd)
}

func (s *stubDeliveryService) UpdateStatus(ctx context.Context, cmd services.UpdateDeliveryStatusCommand) (domain.Delivery, error) {
	if s.update == nil {
		return domain.Delivery{ID: cmd.DeliveryID}, nil
	}
	return s.update(ctx, cmd)
}

func (s *stubDeliveryService) AppendTracking(ctx context.Context, cmd services.AppendTrackingCommand) (domain.Delivery, error) {
	if s.appendTrk == nil {
		return domain.Delivery{ID: cmd.DeliveryID}, nil
	}
	return s.appendTrk(ctx, cmd)
}

func (s *stubDeliveryService) Cancel(ctx context.Context, cmd services.CancelDeliveryCommand) (domain.Delivery, error) {
	if s.cancel == nil {
		return domain.Delivery{ID: cmd.DeliveryID}, nil
	}
	return s.cancel(ctx, cmd)
}

type stubCatalogService struct {
	createItem    func(ctx context.Context, cmd services.UpsertItemCommand) (domain.Item, error)
	updateItem    func(ctx context.Context, cmd services.UpsertItemCommand) (domain.Item, error)
	deleteItem    func(ctx context.Context, cmd services.DeleteItemCommand) error
	getItem       func(ctx context.Context, itemID string) (domain.Item, error)
	getItemBySlug func(ctx context.Context, slug string) (domain.Item, error)
	listItems     func(ctx context.Context, cmd services.ListItemsCommand) (domain.Page[domain.Item], error)
	adjustStock   func(ctx context.Context, cmd services.AdjustStockCommand) (domain.Item, error)
	issueUpload   func(ctx context.Context, cmd services.ItemImageUploadCommand) (services.SignedUpload, error)
	createBouquet func(ctx context.Context, cmd services.CreateBouquetCommand) (domain.Bouquet, error)
	getBouquet    func(ctx context.Context, cmd services.GetBouquetCommand) (domain.Bouquet, error)
	listBouquets  func(ctx context.Context, ownerID string, pager domain.Pagination) (domain.Page[domain.Bouquet], error)
}

func (s *stubCatalogService) CreateItem(ctx context.Context, cmd services.UpsertItemCommand) (domain.Item, error) {
	if s.createItem == nil {
		return domain.Item{Name: cmd.Name}, nil
	}
	return s.createItem(ctx, cmd)
}

func (s *stubCatalogService) UpdateItem(ctx context.Context, cmd services.UpsertItemCommand) (domain.Item, error) {
	if s.updateItem == nil {
		return domain.Item{ID: cmd.ItemID}, nil
	}
	return s.updateItem(ctx, cmd)
}

func (s *stubCatalogService) DeleteItem(ctx context.Context, cmd services.DeleteItemCommand) error {
	if s.deleteItem == nil {
		return nil
	}
	return s.deleteItem(ctx, cmd)
}

func (s *stubCatalogService) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	if s.getItem == nil {
		return domain.Item{ID: itemID}, nil
	}
	return s.getItem(ctx, itemID)
}

func (s *stubCatalogService) GetItemBySlug(ctx context.Context, slug string) (domain.Item, error) {
	if s.getItemBySlug == nil {
		return domain.Item{Slug: slug}, nil
	}
	return s.getItemBySlug(ctx, slug)
}

func (s *stubCatalogService) ListItems(ctx context.Context, cmd services.ListItemsCommand) (domain.Page[domain.Item], error) {
	if s.listItems == nil {
		return domain.Page[domain.Item]{Items: []domain.Item{}}, nil
	}
	return s.listItems(ctx, cmd)
}

func (s *stubCatalogService) AdjustStock(ctx context.Context, cmd services.AdjustStockCommand) (domain.Item, error) {
	if s.adjustStock == nil {
		return domain.Item{ID: cmd.ItemID}, nil
	}
	return s.adjustStock(ctx, cmd)
}

func (s *stubCatalogService) IssueImageUploadURL(ctx context.Context, cmd services.ItemImageUploadCommand) (services.SignedUpload, error) {
	if s.issueUpload == nil {
		return services.SignedUpload{}, nil
	}
	return s.issueUpload(ctx, cmd)
}

func (s *stubCatalogService) CreateBouquet(ctx context.Context, cmd services.CreateBouquetCommand) (domain.Bouquet, error) {
	if s.createBouquet == nil {
		return domain.Bouquet{OwnerID: cmd.OwnerID}, nil
	}
	return s.createBouquet(ctx, cmd)
}

func (s *stubCatalogService) GetBouquet(ctx context.Context, cmd services.GetBouquetCommand) (domain.Bouquet, error) {
	if s.getBouquet == nil {
		return domain.Bouquet{ID: cmd.BouquetID}, nil
	}
	return s.getBouquet(ctx, cmd)
}

func (s *stubCatalogService) ListBouquets(ctx context.Context, ownerID string, pager domain.Pagination) (domain.Page[domain.Bouquet], error) {
	if s.listBouquets == nil {
		return domain.Page[domain.Bouquet]{Items: []domain.Bouquet{}}, nil
	}
	return s.listBouquets(ctx, ownerID, pager)
}

type stubSystemService struct {
	healthReport func(ctx context.Context) (domain.SystemHealthReport, error)
	nextCounter  func(ctx context.Context, cmd services.CounterCommand) (int64, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.healthReport == nil {
		return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
	}
	return s.healthReport(ctx)
}

func (s *stubSystemService) NextCounterValue(ctx context.Context, cmd services.CounterCommand) (int64, error) {
	if s.nextCounter == nil {
		return 0, nil
	}
	return s.nextCounter(ctx, cmd)
}

var (
	_ services.CartService     = (*stubCartService)(nil)
	_ services.CheckoutService = (*stubCheckoutService)(nil)
	_ services.OrderService    = (*stubOrderService)(nil)
	_ services.DeliveryService = (*stubDeliveryService)(nil)
	_ services.CatalogService  = (*stubCatalogService)(nil)
	_ services.SystemService   = (*stubSystemService)(nil)
)
