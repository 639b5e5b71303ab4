package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bloomfield/api/internal/domain"
	pfirestore "github.com/bloomfield/api/internal/platform/firestore"
	"github.com/bloomfield/api/internal/repositories"
)

const notificationsCollection = "notifications"

// NotificationRepository stores admin-authored announcements.
type NotificationRepository struct {
	provider      *pfirestore.Provider
	notifications *pfirestore.BaseRepository[notificationDocument]
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{
		provider:      provider,
		notifications: pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil),
	}, nil
}

// Insert creates the notification document, failing on id collisions.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.notifications == nil {
		return errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notification.ID)
	if id == "" {
		return errors.New("notification repository: notification id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(notificationsCollection).Doc(id).Create(ctx, notificationToDocument(notification))
	return pfirestore.WrapError("notifications.insert", err)
}

// Update replaces the mutable fields of the notification document.
func (r *NotificationRepository) Update(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.notifications == nil {
		return errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notification.ID)
	if id == "" {
		return errors.New("notification repository: notification id is required")
	}
	_, err := r.notifications.Update(ctx, id, []firestore.Update{
		{Path: "title", Value: notification.Title},
		{Path: "message", Value: notification.Message},
		{Path: "type", Value: string(notification.Type)},
		{Path: "target", Value: string(notification.Target)},
		{Path: "isActive", Value: notification.IsActive},
		{Path: "updatedAt", Value: notification.UpdatedAt.UTC()},
	})
	return err
}

// FindByID loads a single notification.
func (r *NotificationRepository) FindByID(ctx context.Context, notificationID string) (domain.Notification, error) {
	if r == nil || r.notifications == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return domain.Notification{}, errors.New("notification repository: notification id is required")
	}

	doc, err := r.notifications.Get(ctx, id)
	if err != nil {
		return domain.Notification{}, err
	}
	return notificationFromDocument(doc.ID, doc.Data), nil
}

// List returns a page of notifications newest first.
func (r *NotificationRepository) List(ctx context.Context, filter repositories.NotificationListFilter) (domain.Page[domain.Notification], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Notification]{}, errors.New("notification repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}

	query := client.Collection(notificationsCollection).Query
	if filter.ActiveOnly {
		query = query.Where("isActive", "==", true)
	}
	if len(filter.Targets) > 0 {
		targets := make([]string, 0, len(filter.Targets))
		for _, target := range filter.Targets {
			targets = append(targets, string(target))
		}
		query = query.Where("target", "in", targets)
	}

	total, err := countDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Notification]{}, pfirestore.WrapError("notifications.count", err)
	}

	pager := normalisePager(filter.Pagination)
	query = query.OrderBy("createdAt", firestore.Desc).
		Offset(pagerOffset(pager)).
		Limit(pager.Limit)

	docs, err := r.notifications.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}

	items := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		items = append(items, notificationFromDocument(doc.ID, doc.Data))
	}
	return newPage(items, pager, total), nil
}

type notificationDocument struct {
	Title     string    `firestore:"title"`
	Message   string    `firestore:"message"`
	Type      string    `firestore:"type"`
	Target    string    `firestore:"target"`
	IsActive  bool      `firestore:"isActive"`
	CreatedBy string    `firestore:"createdBy"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func notificationToDocument(notification domain.Notification) notificationDocument {
	return notificationDocument{
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      string(notification.Type),
		Target:    string(notification.Target),
		IsActive:  notification.IsActive,
		CreatedBy: notification.CreatedBy,
		CreatedAt: notification.CreatedAt.UTC(),
		UpdatedAt: notification.UpdatedAt.UTC(),
	}
}

func notificationFromDocument(id string, doc notificationDocument) domain.Notification {
	return domain.Notification{
		ID:        id,
		Title:     doc.Title,
		Message:   doc.Message,
		Type:      domain.NotificationType(doc.Type),
		Target:    domain.NotificationTarget(doc.Target),
		IsActive:  doc.IsActive,
		CreatedBy: doc.CreatedBy,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)
