package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/platform/auth"
	"github.com/bloomfield/api/internal/platform/storage"
	"github.com/bloomfield/api/internal/repositories"
)

const (
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderAuditAccessDenied = "order.access.denied"
)

// orderStatusTransitions is the staff-driven transition table. Courier
// progress (out_for_delivery, delivered) is written only by the delivery
// service, so no staff transition targets those statuses.
var orderStatusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusConfirmed},
	domain.OrderStatusConfirmed:      {domain.OrderStatusPreparing},
	domain.OrderStatusPreparing:      {},
	domain.OrderStatusOutForDelivery: {},
	domain.OrderStatusDelivered:      {},
	domain.OrderStatusCancelled:      {},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Clock         func() time.Time
	Events        EventPublisher
	Audit         AuditLogService
	Signer        ObjectURLSigner
	ReceiptBucket string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	clock         func() time.Time
	events        EventPublisher
	audit         AuditLogService
	signer        ObjectURLSigner
	receiptBucket string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		clock:         func() time.Time { return clock().UTC() },
		events:        deps.Events,
		audit:         deps.Audit,
		signer:        deps.Signer,
		receiptBucket: strings.TrimSpace(deps.ReceiptBucket),
		logger:        logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}

	if !cmd.IsAdmin && order.OwnerID != strings.TrimSpace(cmd.ActorID) {
		s.recordAccessDenied(ctx, cmd.ActorID, orderID)
		return Order{}, fmt.Errorf("%w: order %q", ErrAccessDenied, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.Page[Order], error) {
	filter := repositories.OrderListFilter{
		OwnerID:    strings.TrimSpace(cmd.OwnerID),
		Status:     cmd.Status,
		Pagination: cmd.Pagination,
	}
	// Customers only ever see their own orders regardless of the filter they
	// send.
	if !cmd.IsAdmin {
		filter.OwnerID = strings.TrimSpace(cmd.ActorID)
		if filter.OwnerID == "" {
			return domain.Page[Order]{}, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
		}
	}
	for _, status := range filter.Status {
		if !domain.ValidOrderStatus(status) {
			return domain.Page[Order]{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, status)
		}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if !domain.ValidOrderStatus(cmd.Target) {
		return Order{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, cmd.Target)
	}

	var previous domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order, _ *domain.Delivery) error {
		previous = order.Status
		allowed := orderStatusTransitions[order.Status]
		if !slices.Contains(allowed, cmd.Target) {
			return newOrderTransitionError(order.Status, cmd.Target, allowed)
		}
		order.Status = cmd.Target
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}

	now := s.clock()
	s.publishEvent(ctx, StoreEvent{
		Type:       orderEventStatusChanged,
		EntityID:   order.ID,
		OwnerID:    order.OwnerID,
		ActorID:    strings.TrimSpace(cmd.ActorID),
		OccurredAt: now,
		Metadata: map[string]any{
			"orderNumber": order.Number,
			"from":        string(previous),
			"to":          string(order.Status),
		},
	})

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)

	switch cmd.Actor {
	case domain.CancelActorCustomer, domain.CancelActorAdmin:
	default:
		return Order{}, fmt.Errorf("%w: unknown cancel actor %q", ErrInvalidInput, cmd.Actor)
	}

	now := s.clock()
	var previous domain.OrderStatus

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order, delivery *domain.Delivery) error {
		previous = order.Status

		if cmd.Actor == domain.CancelActorCustomer {
			if order.OwnerID != actor {
				s.recordAccessDenied(ctx, actor, orderID)
				return fmt.Errorf("%w: order %q", ErrAccessDenied, orderID)
			}
			// Customers may only back out before staff start working the
			// order.
			if order.Status != domain.OrderStatusPending {
				return newOrderTransitionError(order.Status, domain.OrderStatusCancelled, nil)
			}
		} else {
			if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusDelivered {
				return newOrderTransitionError(order.Status, domain.OrderStatusCancelled, nil)
			}
		}

		order.Status = domain.OrderStatusCancelled
		order.Cancellation = &domain.Cancellation{
			By:          cmd.Actor,
			Reason:      reason,
			CancelledAt: now,
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			order.PaymentStatus = domain.PaymentStatusRefunded
		}

		// Admin cancellation force-cancels the linked delivery in the same
		// transaction so the courier record can never outlive its order.
		// Customer cancellation only ever hits pending orders, whose delivery
		// staff resolve when processing the cancellation.
		if cmd.Actor == domain.CancelActorAdmin && delivery != nil && !delivery.Status.IsTerminal() {
			message := cancelCascadeMessage(reason)
			delivery.Status = domain.DeliveryStatusCancelled
			delivery.Cancellation = &domain.Cancellation{
				By:          cmd.Actor,
				Reason:      message,
				CancelledAt: now,
			}
			delivery.TrackingUpdates = append(delivery.TrackingUpdates, domain.TrackingUpdate{
				Message:   message,
				Timestamp: now,
				UpdatedBy: actorOrSystem(actor),
			})
		}
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, StoreEvent{
		Type:       orderEventCancelled,
		EntityID:   order.ID,
		OwnerID:    order.OwnerID,
		ActorID:    actor,
		OccurredAt: now,
		Metadata: map[string]any{
			"orderNumber": order.Number,
			"from":        string(previous),
			"by":          string(cmd.Actor),
			"reason":      reason,
		},
	})

	return order, nil
}

// IssueReceiptURL signs a short-lived download URL for the order's receipt
// PDF. The signer enforces the owner-or-admin rule a second time.
func (s *orderService) IssueReceiptURL(ctx context.Context, cmd ReceiptDownloadCommand) (SignedDownload, error) {
	if s.signer == nil || s.receiptBucket == "" {
		return SignedDownload{}, errors.New("order service: receipt downloads are not configured")
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return SignedDownload{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return SignedDownload{}, mapRepositoryError(err)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	if !cmd.IsAdmin && order.OwnerID != actor {
		s.recordAccessDenied(ctx, actor, orderID)
		return SignedDownload{}, fmt.Errorf("%w: order %q", ErrAccessDenied, orderID)
	}

	object, err := storage.BuildObjectPath(storage.PurposeReceipt, storage.PathParams{
		OrderID:       order.ID,
		InvoiceNumber: order.Number,
	})
	if err != nil {
		return SignedDownload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	role := auth.RoleCustomer
	if cmd.IsAdmin {
		role = auth.RoleAdmin
	}
	result, err := s.signer.SignedURL(ctx, s.receiptBucket, object, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			OwnerID:      order.OwnerID,
			Identity:     &auth.Identity{UID: actor, Roles: []string{role}},
			Disposition:  fmt.Sprintf("attachment; filename=%q", order.Number+".pdf"),
			ResponseType: "application/pdf",
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrPermissionDenied) {
			return SignedDownload{}, fmt.Errorf("%w: order %q", ErrAccessDenied, orderID)
		}
		return SignedDownload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return SignedDownload{
		URL:        result.URL,
		ObjectPath: object,
		ExpiresAt:  result.ExpiresAt,
	}, nil
}

func (s *orderService) recordAccessDenied(ctx context.Context, actorID, orderID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditLogRecord{
		Actor:     actorID,
		ActorType: "user",
		Action:    orderAuditAccessDenied,
		TargetRef: "orders/" + orderID,
		Severity:  "warn",
	})
}

func (s *orderService) publishEvent(ctx context.Context, event StoreEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.EntityID,
			"error": err.Error(),
		})
	}
}

func cancelCascadeMessage(reason string) string {
	if reason == "" {
		reason = "no reason given"
	}
	return "Order cancelled by admin: " + reason
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return systemActor
	}
	return actor
}

var _ OrderService = (*orderService)(nil)
