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
	deliveryEventStatusChanged = "delivery.status.changed"
	deliveryEventCancelled     = "delivery.cancelled"

	deliveryAuditAccessDenied = "delivery.access.denied"

	trackingDeliveredMessage = "Package delivered successfully"
	trackingInTransitMessage = "Package is out for delivery"
	trackingScheduledMessage = "Delivery scheduled"
)

// DeliveryServiceDeps bundles collaborators required to construct the delivery service.
type DeliveryServiceDeps struct {
	Deliveries  repositories.DeliveryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Audit       AuditLogService
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type deliveryService struct {
	deliveries repositories.DeliveryRepository
	clock      func() time.Time
	newID      func() string
	events     EventPublisher
	audit      AuditLogService
	logger     func(context.Context, string, map[string]any)
}

// NewDeliveryService wires dependencies into a concrete DeliveryService implementation.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Deliveries == nil {
		return nil, errors.New("delivery service: delivery repository is required")
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

	return &deliveryService{
		deliveries: deps.Deliveries,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		events:     deps.Events,
		audit:      deps.Audit,
		logger:     logger,
	}, nil
}

func (s *deliveryService) CreateDelivery(ctx context.Context, cmd CreateDeliveryCommand) (Delivery, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Delivery{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	recipient := strings.TrimSpace(cmd.RecipientName)
	if recipient == "" {
		return Delivery{}, fmt.Errorf("%w: recipient name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.Address.Street) == "" || strings.TrimSpace(cmd.Address.City) == "" {
		return Delivery{}, fmt.Errorf("%w: address street and city are required", ErrInvalidInput)
	}

	now := s.clock()
	delivery := domain.Delivery{
		ID:                deliveryIDPrefix + s.newID(),
		OrderID:           orderID,
		RecipientName:     recipient,
		RecipientPhone:    strings.TrimSpace(cmd.RecipientPhone),
		Address:           cmd.Address,
		Status:            domain.DeliveryStatusPending,
		ScheduledDate:     cmd.ScheduledDate,
		EstimatedDelivery: cmd.EstimatedDelivery,
		Notes:             strings.TrimSpace(cmd.Notes),
		TrackingUpdates: []domain.TrackingUpdate{{
			Message:   trackingScheduledMessage,
			Timestamp: now,
			UpdatedBy: actorOrSystem(strings.TrimSpace(cmd.ActorID)),
		}},
	}

	created, err := s.deliveries.Create(ctx, delivery, func(order domain.Order) error {
		if order.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: order %q", ErrOrderCancelled, orderID)
		}
		return nil
	})
	if err != nil {
		err = mapRepositoryError(err)
		// The conflict here is always the order already carrying a delivery.
		if errors.Is(err, ErrConflict) {
			return Delivery{}, fmt.Errorf("%w: order %q already has a delivery", ErrAlreadyExists, orderID)
		}
		return Delivery{}, err
	}
	return created, nil
}

func (s *deliveryService) GetDelivery(ctx context.Context, cmd GetDeliveryCommand) (Delivery, error) {
	deliveryID := strings.TrimSpace(cmd.DeliveryID)
	if deliveryID == "" {
		return Delivery{}, fmt.Errorf("%w: delivery id is required", ErrInvalidInput)
	}

	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return Delivery{}, mapRepositoryError(err)
	}
	if !cmd.IsAdmin && delivery.OwnerID != strings.TrimSpace(cmd.ActorID) {
		s.recordAccessDenied(ctx, cmd.ActorID, deliveryID)
		return Delivery{}, fmt.Errorf("%w: delivery %q", ErrAccessDenied, deliveryID)
	}
	return delivery, nil
}

func (s *deliveryService) GetDeliveryByOrder(ctx context.Context, cmd GetDeliveryByOrderCommand) (Delivery, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Delivery{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	delivery, err := s.deliveries.FindByOrderID(ctx, orderID)
	if err != nil {
		return Delivery{}, mapRepositoryError(err)
	}
	if !cmd.IsAdmin && delivery.OwnerID != strings.TrimSpace(cmd.ActorID) {
		s.recordAccessDenied(ctx, cmd.ActorID, delivery.ID)
		return Delivery{}, fmt.Errorf("%w: delivery for order %q", ErrAccessDenied, orderID)
	}
	return delivery, nil
}

func (s *deliveryService) ListDeliveries(ctx context.Context, cmd ListDeliveriesCommand) (domain.Page[Delivery], error) {
	for _, status := range cmd.Status {
		if !domain.ValidDeliveryStatus(status) {
			return domain.Page[Delivery]{}, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidInput, status)
		}
	}
	page, err := s.deliveries.List(ctx, repositories.DeliveryListFilter{
		OwnerID:    strings.TrimSpace(cmd.OwnerID),
		Status:     cmd.Status,
		Pagination: cmd.Pagination,
	})
	if err != nil {
		return domain.Page[Delivery]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *deliveryService) UpdateStatus(ctx context.Context, cmd UpdateDeliveryStatusCommand) (Delivery, error) {
	deliveryID := strings.TrimSpace(cmd.DeliveryID)
	if deliveryID == "" {
		return Delivery{}, fmt.Errorf("%w: delivery id is required", ErrInvalidInput)
	}
	if !domain.ValidDeliveryStatus(cmd.Target) {
		return Delivery{}, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidInput, cmd.Target)
	}
	if cmd.Target == domain.DeliveryStatusCancelled {
		return Delivery{}, fmt.Errorf("%w: cancellation goes through the cancel operation", ErrInvalidInput)
	}

	actor := actorOrSystem(strings.TrimSpace(cmd.ActorID))
	now := s.clock()
	var previous domain.DeliveryStatus

	delivery, err := s.deliveries.Mutate(ctx, deliveryID, func(delivery *domain.Delivery, order *domain.Order) error {
		if delivery.Status.IsTerminal() {
			return fmt.Errorf("%w: delivery %q is %s", ErrDeliveryFrozen, deliveryID, delivery.Status)
		}
		previous = delivery.Status
		delivery.Status = cmd.Target
		if cmd.EstimatedDelivery != nil {
			delivery.EstimatedDelivery = cmd.EstimatedDelivery
		}

		// Courier progress drives the order lifecycle directly, skipping the
		// staff transition table.
		switch cmd.Target {
		case domain.DeliveryStatusInTransit:
			delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
				Message:   trackingInTransitMessage,
				Timestamp: now,
				UpdatedBy: actor,
			})
			if order.Status != domain.OrderStatusCancelled {
				order.Status = domain.OrderStatusOutForDelivery
			}
		case domain.DeliveryStatusDelivered:
			delivery.DeliveredAt = &now
			delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
				Message:   trackingDeliveredMessage,
				Timestamp: now,
				UpdatedBy: actor,
			})
			if order.Status != domain.OrderStatusCancelled {
				order.Status = domain.OrderStatusDelivered
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, StoreEvent{
		Type:       deliveryEventStatusChanged,
		EntityID:   delivery.ID,
		OwnerID:    delivery.OwnerID,
		ActorID:    actor,
		OccurredAt: now,
		Metadata: map[string]any{
			"order": delivery.OrderID,
			"from":  string(previous),
			"to":    string(delivery.Status),
		},
	})

	return delivery, nil
}

func (s *deliveryService) AppendTracking(ctx context.Context, cmd AppendTrackingCommand) (Delivery, error) {
	deliveryID := strings.TrimSpace(cmd.DeliveryID)
	message := strings.TrimSpace(cmd.Message)
	if deliveryID == "" {
		return Delivery{}, fmt.Errorf("%w: delivery id is required", ErrInvalidInput)
	}
	if message == "" {
		return Delivery{}, fmt.Errorf("%w: tracking message is required", ErrInvalidInput)
	}

	now := s.clock()
	delivery, err := s.deliveries.Mutate(ctx, deliveryID, func(delivery *domain.Delivery, _ *domain.Order) error {
		// Delivered records still accept notes (proof of delivery and the
		// like); cancelled records are frozen entirely.
		if delivery.Status == domain.DeliveryStatusCancelled {
			return fmt.Errorf("%w: delivery %q is cancelled", ErrDeliveryFrozen, deliveryID)
		}
		delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
			Message:   message,
			Timestamp: now,
			UpdatedBy: actorOrSystem(strings.TrimSpace(cmd.ActorID)),
		})
		return nil
	})
	if err != nil {
		return Delivery{}, mapRepositoryError(err)
	}
	return delivery, nil
}

func (s *deliveryService) Cancel(ctx context.Context, cmd CancelDeliveryCommand) (Delivery, error) {
	deliveryID := strings.TrimSpace(cmd.DeliveryID)
	if deliveryID == "" {
		return Delivery{}, fmt.Errorf("%w: delivery id is required", ErrInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	actor := actorOrSystem(strings.TrimSpace(cmd.ActorID))
	now := s.clock()

	// Cancelling a delivery leaves the order alone. Staff decide separately
	// whether the order itself is rescheduled or cancelled.
	delivery, err := s.deliveries.Mutate(ctx, deliveryID, func(delivery *domain.Delivery, _ *domain.Order) error {
		switch delivery.Status {
		case domain.DeliveryStatusCancelled:
			return fmt.Errorf("%w", ErrAlreadyCancelled)
		case domain.DeliveryStatusDelivered:
			return fmt.Errorf("%w", ErrCompletedDelivery)
		}

		message := "Delivery cancelled"
		if reason != "" {
			message = "Delivery cancelled. Reason: " + reason
		}
		delivery.Status = domain.DeliveryStatusCancelled
		delivery.Cancellation = &domain.Cancellation{
			By:          domain.CancelActorAdmin,
			Reason:      reason,
			CancelledAt: now,
		}
		delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
			Message:   message,
			Timestamp: now,
			UpdatedBy: actor,
		})
		return nil
	})
	if err != nil {
		return Delivery{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, StoreEvent{
		Type:       deliveryEventCancelled,
		EntityID:   delivery.ID,
		OwnerID:    delivery.OwnerID,
		ActorID:    actor,
		OccurredAt: now,
		Metadata: map[string]any{
			"order":  delivery.OrderID,
			"reason": reason,
		},
	})

	return delivery, nil
}

func (s *deliveryService) recordAccessDenied(ctx context.Context, actorID, deliveryID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditLogRecord{
		Actor:     actorID,
		ActorType: "user",
		Action:    deliveryAuditAccessDenied,
		TargetRef: "deliveries/" + deliveryID,
		Severity:  "warn",
	})
}

func (s *deliveryService) publishEvent(ctx context.Context, event StoreEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger(ctx, "delivery.event.publish.failed", map[string]any{
			"type":     event.Type,
			"delivery": event.EntityID,
			"error":    err.Error(),
		})
	}
}

var _ DeliveryService = (*deliveryService)(nil)
