package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bloomfield/api/internal/platform/config"
	"github.com/bloomfield/api/internal/repositories"
	"github.com/bloomfield/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart          services.CartService
	Checkout      services.CheckoutService
	Orders        services.OrderService
	Deliveries    services.DeliveryService
	Catalog       services.CatalogService
	Favorites     services.FavoritesService
	Notifications services.NotificationService
	Audit         services.AuditLogService
	System        services.SystemService
}

// Deps carries the collaborators that are constructed outside the repository
// registry: the event publisher, the signed URL issuer, the process logger,
// and build metadata for the health report.
type Deps struct {
	Events       services.EventPublisher
	ObjectSigner services.ObjectURLSigner
	Logger       *zap.Logger
	Build        services.BuildInfo
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring supplies the
// Firestore-backed registry; tests can inject in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, reg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources held by the repository registry.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (Services, error) {
	var svc Services

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	audit, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: reg.AuditLogs(),
		Clock:      time.Now,
		Logger:     logger.Named("audit").Sugar(),
		HashSalt:   cfg.Audit.HashSalt,
	})
	if err != nil {
		return svc, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = audit

	svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Items:    reg.Items(),
		Bouquets: reg.Bouquets(),
		Clock:    time.Now,
		Logger:   eventLogger(logger.Named("cart")),
	})
	if err != nil {
		return svc, fmt.Errorf("build cart service: %w", err)
	}

	svc.Checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
		Checkout: reg.Checkout(),
		Items:    reg.Items(),
		Bouquets: reg.Bouquets(),
		Counters: reg.Counters(),
		Clock:    time.Now,
		Events:   deps.Events,
		Logger:   eventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return svc, fmt.Errorf("build checkout service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Clock:         time.Now,
		Events:        deps.Events,
		Audit:         audit,
		Signer:        deps.ObjectSigner,
		ReceiptBucket: cfg.Storage.AssetsBucket,
		Logger:        eventLogger(logger.Named("orders")),
	})
	if err != nil {
		return svc, fmt.Errorf("build order service: %w", err)
	}

	svc.Deliveries, err = services.NewDeliveryService(services.DeliveryServiceDeps{
		Deliveries: reg.Deliveries(),
		Clock:      time.Now,
		Events:     deps.Events,
		Audit:      audit,
		Logger:     eventLogger(logger.Named("deliveries")),
	})
	if err != nil {
		return svc, fmt.Errorf("build delivery service: %w", err)
	}

	svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{
		Items:       reg.Items(),
		Bouquets:    reg.Bouquets(),
		Signer:      deps.ObjectSigner,
		ImageBucket: cfg.Storage.AssetsBucket,
		Clock:       time.Now,
		Logger:      eventLogger(logger.Named("catalog")),
	})
	if err != nil {
		return svc, fmt.Errorf("build catalog service: %w", err)
	}

	svc.Favorites, err = services.NewFavoritesService(services.FavoritesServiceDeps{
		Favorites: reg.Favorites(),
		Items:     reg.Items(),
		Bouquets:  reg.Bouquets(),
		Clock:     time.Now,
	})
	if err != nil {
		return svc, fmt.Errorf("build favorites service: %w", err)
	}

	svc.Notifications, err = services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: reg.Notifications(),
		Clock:         time.Now,
		Events:        deps.Events,
		Logger:        eventLogger(logger.Named("notifications")),
	})
	if err != nil {
		return svc, fmt.Errorf("build notification service: %w", err)
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Counters:         reg.Counters(),
		Clock:            time.Now,
		Build:            deps.Build,
	})
	if err != nil {
		return svc, fmt.Errorf("build system service: %w", err)
	}

	return svc, nil
}

// eventLogger adapts a zap logger to the event/fields callback the services accept.
func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
