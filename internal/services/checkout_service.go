package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/repositories"
)

const (
	orderIDPrefix    = "ord_"
	deliveryIDPrefix = "dlv_"

	orderNumberCounter = "orders"

	checkoutEventOrderCreated = "order.created"

	initialTrackingMessage = "Order placed - awaiting confirmation"
	systemActor            = "system"
)

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Checkout    repositories.CheckoutRepository
	Items       repositories.ItemRepository
	Bouquets    repositories.BouquetRepository
	Counters    repositories.CounterRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	checkout repositories.CheckoutRepository
	items    repositories.ItemRepository
	bouquets repositories.BouquetRepository
	counters repositories.CounterRepository
	clock    func() time.Time
	newID    func() string
	events   EventPublisher
	logger   func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Checkout == nil {
		return nil, errors.New("checkout service: checkout repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("checkout service: item repository is required")
	}
	if deps.Bouquets == nil {
		return nil, errors.New("checkout service: bouquet repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		checkout: deps.Checkout,
		items:    deps.Items,
		bouquets: deps.Bouquets,
		counters: deps.Counters,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" {
		return CheckoutResult{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if !domain.ValidPaymentMethod(cmd.PaymentMethod) {
		return CheckoutResult{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, cmd.PaymentMethod)
	}
	if cmd.Delivery != nil {
		if strings.TrimSpace(cmd.Delivery.RecipientName) == "" {
			return CheckoutResult{}, fmt.Errorf("%w: recipient name is required", ErrInvalidInput)
		}
		if strings.TrimSpace(cmd.Delivery.Address.Street) == "" || strings.TrimSpace(cmd.Delivery.Address.City) == "" {
			return CheckoutResult{}, fmt.Errorf("%w: delivery address street and city are required", ErrInvalidInput)
		}
	}

	now := s.clock()

	// A checkout that fails after this point burns a sequence number. Order
	// numbers stay unique either way.
	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	var productQuantities map[string]int

	result, err := s.checkout.RunCheckout(ctx, uid, func(cart domain.Cart) (domain.Order, *domain.Delivery, error) {
		if len(cart.Lines) == 0 {
			return domain.Order{}, nil, ErrEmptyCart
		}

		lines := make([]domain.OrderLine, 0, len(cart.Lines))
		quantities := make(map[string]int)
		for _, line := range cart.Lines {
			built, err := s.buildOrderLine(ctx, line)
			if err != nil {
				return domain.Order{}, nil, err
			}
			lines = append(lines, built)
			if line.Kind == domain.LineKindProduct {
				quantities[line.RefID] += line.Quantity
			}
		}
		productQuantities = quantities

		paymentStatus := domain.PaymentStatusUnpaid
		if cmd.PaymentMethod == domain.PaymentMethodOnline {
			paymentStatus = domain.PaymentStatusPaid
		}

		order := domain.Order{
			ID:            orderIDPrefix + s.newID(),
			Number:        number,
			OwnerID:       uid,
			Lines:         lines,
			TotalAmount:   cart.Total,
			Status:        domain.OrderStatusPending,
			PaymentStatus: paymentStatus,
			PaymentMethod: cmd.PaymentMethod,
			Notes:         strings.TrimSpace(cmd.Notes),
		}

		// Pickup orders carry no delivery record at all.
		if cmd.Delivery == nil {
			return order, nil, nil
		}

		delivery := domain.Delivery{
			ID:             deliveryIDPrefix + s.newID(),
			OrderID:        order.ID,
			OwnerID:        uid,
			RecipientName:  strings.TrimSpace(cmd.Delivery.RecipientName),
			RecipientPhone: strings.TrimSpace(cmd.Delivery.RecipientPhone),
			Address:        cmd.Delivery.Address,
			Status:         domain.DeliveryStatusPending,
			ScheduledDate:  cmd.Delivery.ScheduledDate,
			Notes:          strings.TrimSpace(cmd.Delivery.Notes),
			TrackingUpdates: []domain.TrackingUpdate{{
				Message:   initialTrackingMessage,
				Timestamp: now,
				UpdatedBy: systemActor,
			}},
		}

		return order, &delivery, nil
	})
	if err != nil {
		return CheckoutResult{}, mapRepositoryError(err)
	}

	s.commitStock(ctx, result.Order.ID, productQuantities)

	s.publishEvent(ctx, StoreEvent{
		Type:       checkoutEventOrderCreated,
		EntityID:   result.Order.ID,
		OwnerID:    uid,
		ActorID:    uid,
		OccurredAt: now,
		Metadata: map[string]any{
			"orderNumber":   result.Order.Number,
			"totalAmount":   result.Order.TotalAmount,
			"paymentMethod": string(result.Order.PaymentMethod),
		},
	})

	return CheckoutResult{Order: result.Order, Delivery: result.Delivery}, nil
}

// buildOrderLine freezes a cart line into an order line snapshot. The unit
// price comes from the cart, never from the catalog read here.
func (s *checkoutService) buildOrderLine(ctx context.Context, line domain.CartLine) (domain.OrderLine, error) {
	built := domain.OrderLine{
		Kind:      line.Kind,
		RefID:     line.RefID,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Subtotal:  line.Subtotal,
	}

	switch line.Kind {
	case domain.LineKindProduct:
		item, err := s.items.FindByID(ctx, line.RefID)
		if err != nil {
			return domain.OrderLine{}, mapRepositoryError(err)
		}
		if !item.IsAvailable {
			return domain.OrderLine{}, fmt.Errorf("%w: item %q is not available", ErrNotFound, line.RefID)
		}
		if line.Quantity > item.Stock {
			return domain.OrderLine{}, fmt.Errorf("%w: item %q has %d left", ErrInsufficientStock, line.RefID, item.Stock)
		}
		built.Name = item.Name
		if len(item.Images) > 0 {
			built.ImageURL = item.Images[0]
		}
	case domain.LineKindCustom:
		bouquet, err := s.bouquets.FindByID(ctx, line.RefID)
		if err != nil {
			return domain.OrderLine{}, mapRepositoryError(err)
		}
		built.Name = customLineName(bouquet)
	default:
		return domain.OrderLine{}, fmt.Errorf("%w: unknown line kind %q", ErrInvalidInput, line.Kind)
	}

	return built, nil
}

// commitStock decrements catalog stock after the checkout transaction
// committed. A failed decrement leaves the order intact; drift surfaces on
// the next stock take, so it is logged rather than rolled back.
func (s *checkoutService) commitStock(ctx context.Context, orderID string, quantities map[string]int) {
	for itemID, quantity := range quantities {
		if quantity <= 0 {
			continue
		}
		if _, err := s.items.AdjustStock(ctx, itemID, -quantity); err != nil {
			s.logger(ctx, "checkout.stock.decrement.failed", map[string]any{
				"order":    orderID,
				"item":     itemID,
				"quantity": quantity,
				"error":    err.Error(),
			})
		}
	}
}

func (s *checkoutService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", mapRepositoryError(err)
	}
	return fmt.Sprintf("BF-%04d-%06d", now.Year(), seq), nil
}

func (s *checkoutService) publishEvent(ctx context.Context, event StoreEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.EntityID,
			"error": err.Error(),
		})
	}
}

func customLineName(bouquet domain.Bouquet) string {
	if name := strings.TrimSpace(bouquet.RecipientName); name != "" {
		return "Custom Bouquet for " + name
	}
	return "Custom Bouquet"
}

var _ CheckoutService = (*checkoutService)(nil)
