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
	notificationIDPrefix = "ntf_"

	notificationEventPublished = "notification.published"
)

// NotificationServiceDeps bundles collaborators required to construct the notification service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Events        EventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	clock         func() time.Time
	newID         func() string
	events        EventPublisher
	logger        func(context.Context, string, map[string]any)
}

// NewNotificationService wires dependencies into a concrete NotificationService implementation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
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

	return &notificationService{
		notifications: deps.Notifications,
		clock:         func() time.Time { return clock().UTC() },
		newID:         idGen,
		events:        deps.Events,
		logger:        logger,
	}, nil
}

func (s *notificationService) CreateNotification(ctx context.Context, cmd UpsertNotificationCommand) (Notification, error) {
	notification, err := buildNotification(cmd)
	if err != nil {
		return Notification{}, err
	}
	now := s.clock()
	notification.ID = notificationIDPrefix + s.newID()
	notification.CreatedBy = strings.TrimSpace(cmd.ActorID)
	notification.CreatedAt = now
	notification.UpdatedAt = now

	if err := s.notifications.Insert(ctx, notification); err != nil {
		return Notification{}, mapRepositoryError(err)
	}

	// Fanout is fire and forget; the announcement is durable either way.
	if notification.IsActive {
		s.publish(ctx, notification, now)
	}
	return notification, nil
}

func (s *notificationService) UpdateNotification(ctx context.Context, cmd UpsertNotificationCommand) (Notification, error) {
	id := strings.TrimSpace(cmd.NotificationID)
	if id == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}
	notification, err := buildNotification(cmd)
	if err != nil {
		return Notification{}, err
	}

	current, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return Notification{}, mapRepositoryError(err)
	}

	now := s.clock()
	notification.ID = id
	notification.CreatedBy = current.CreatedBy
	notification.CreatedAt = current.CreatedAt
	notification.UpdatedAt = now

	if err := s.notifications.Update(ctx, notification); err != nil {
		return Notification{}, mapRepositoryError(err)
	}

	if notification.IsActive && !current.IsActive {
		s.publish(ctx, notification, now)
	}
	return notification, nil
}

func (s *notificationService) GetNotification(ctx context.Context, notificationID string) (Notification, error) {
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}
	notification, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return Notification{}, mapRepositoryError(err)
	}
	return notification, nil
}

func (s *notificationService) ListNotifications(ctx context.Context, cmd ListNotificationsCommand) (domain.Page[Notification], error) {
	page, err := s.notifications.List(ctx, repositories.NotificationListFilter{
		ActiveOnly: cmd.ActiveOnly,
		Targets:    cmd.Targets,
		Pagination: cmd.Pagination,
	})
	if err != nil {
		return domain.Page[Notification]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *notificationService) publish(ctx context.Context, notification Notification, now time.Time) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, StoreEvent{
		Type:       notificationEventPublished,
		EntityID:   notification.ID,
		ActorID:    notification.CreatedBy,
		OccurredAt: now,
		Metadata: map[string]any{
			"title":  notification.Title,
			"type":   string(notification.Type),
			"target": string(notification.Target),
		},
	})
	if err != nil {
		s.logger(ctx, "notification.event.publish.failed", map[string]any{
			"notification": notification.ID,
			"error":        err.Error(),
		})
	}
}

func buildNotification(cmd UpsertNotificationCommand) (Notification, error) {
	title := strings.TrimSpace(cmd.Title)
	message := strings.TrimSpace(cmd.Message)
	if title == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if message == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if !domain.ValidNotificationType(cmd.Type) {
		return Notification{}, fmt.Errorf("%w: unknown notification type %q", ErrInvalidInput, cmd.Type)
	}
	switch cmd.Target {
	case domain.NotificationTargetAll, domain.NotificationTargetCustomer:
	default:
		return Notification{}, fmt.Errorf("%w: unknown notification target %q", ErrInvalidInput, cmd.Target)
	}

	return Notification{
		Title:    title,
		Message:  message,
		Type:     cmd.Type,
		Target:   cmd.Target,
		IsActive: cmd.IsActive,
	}, nil
}

var _ NotificationService = (*notificationService)(nil)
