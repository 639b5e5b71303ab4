package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	carts         *CartRepository
	checkout      *CheckoutRepository
	orders        *OrderRepository
	deliveries    *DeliveryRepository
	items         *ItemRepository
	bouquets      *BouquetRepository
	favorites     *FavoritesRepository
	notifications *NotificationRepository
	auditLogs     *AuditLogRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

// NewRegistry wires every Firestore repository against the shared provider.
// The health repository is injected because its probe set is assembled at
// composition time.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	registry := &Registry{provider: provider, health: health}

	var err error
	if registry.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	if registry.checkout, err = NewCheckoutRepository(provider); err != nil {
		return nil, fmt.Errorf("build checkout repository: %w", err)
	}
	if registry.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if registry.deliveries, err = NewDeliveryRepository(provider); err != nil {
		return nil, fmt.Errorf("build delivery repository: %w", err)
	}
	if registry.items, err = NewItemRepository(provider); err != nil {
		return nil, fmt.Errorf("build item repository: %w", err)
	}
	if registry.bouquets, err = NewBouquetRepository(provider); err != nil {
		return nil, fmt.Errorf("build bouquet repository: %w", err)
	}
	if registry.favorites, err = NewFavoritesRepository(provider); err != nil {
		return nil, fmt.Errorf("build favorites repository: %w", err)
	}
	if registry.notifications, err = NewNotificationRepository(provider); err != nil {
		return nil, fmt.Errorf("build notification repository: %w", err)
	}
	if registry.auditLogs, err = NewAuditLogRepository(provider); err != nil {
		return nil, fmt.Errorf("build audit log repository: %w", err)
	}
	if registry.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}

	return registry, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository                 { return r.carts }
func (r *Registry) Checkout() repositories.CheckoutRepository          { return r.checkout }
func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Deliveries() repositories.DeliveryRepository        { return r.deliveries }
func (r *Registry) Items() repositories.ItemRepository                 { return r.items }
func (r *Registry) Bouquets() repositories.BouquetRepository           { return r.bouquets }
func (r *Registry) Favorites() repositories.FavoritesRepository        { return r.favorites }
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *Registry) AuditLogs() repositories.AuditLogRepository         { return r.auditLogs }
func (r *Registry) Counters() repositories.CounterRepository           { return r.counters }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }

var _ repositories.Registry = (*Registry)(nil)
