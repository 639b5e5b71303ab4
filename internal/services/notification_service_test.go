package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
)

func newNotificationServiceForTest(t *testing.T, repo *fakeNotificationRepo, events *fakeEvents) NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: repo,
		Clock:         fixedClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)),
		IDGenerator:   staticID("01EEE"),
		Events:        events,
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	return svc
}

func validNotificationCommand() UpsertNotificationCommand {
	return UpsertNotificationCommand{
		Title:    "Mother's Day Sale",
		Message:  "20% off all bouquets this weekend",
		Type:     domain.NotificationTypePromo,
		Target:   domain.NotificationTargetAll,
		IsActive: true,
		ActorID:  "staff-1",
	}
}

func TestNotificationServiceCreatePublishesWhenActive(t *testing.T) {
	repo := newFakeNotificationRepo()
	events := &fakeEvents{}
	svc := newNotificationServiceForTest(t, repo, events)

	notification, err := svc.CreateNotification(context.Background(), validNotificationCommand())
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if notification.ID != "ntf_01EEE" {
		t.Fatalf("unexpected id %q", notification.ID)
	}
	if notification.CreatedBy != "staff-1" {
		t.Fatalf("expected creator recorded, got %q", notification.CreatedBy)
	}
	if len(events.events) != 1 || events.events[0].Type != "notification.published" {
		t.Fatalf("expected publish event, got %#v", events.events)
	}
}

func TestNotificationServiceCreateInactiveSkipsPublish(t *testing.T) {
	repo := newFakeNotificationRepo()
	events := &fakeEvents{}
	svc := newNotificationServiceForTest(t, repo, events)

	cmd := validNotificationCommand()
	cmd.IsActive = false
	if _, err := svc.CreateNotification(context.Background(), cmd); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if len(events.events) != 0 {
		t.Fatalf("inactive notification must not publish, got %#v", events.events)
	}
}

func TestNotificationServiceUpdatePublishesOnActivation(t *testing.T) {
	created := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeNotificationRepo(domain.Notification{
		ID:        "ntf_1",
		Title:     "Old",
		Message:   "Old message",
		Type:      domain.NotificationTypeInfo,
		Target:    domain.NotificationTargetAll,
		IsActive:  false,
		CreatedBy: "staff-0",
		CreatedAt: created,
	})
	events := &fakeEvents{}
	svc := newNotificationServiceForTest(t, repo, events)

	cmd := validNotificationCommand()
	cmd.NotificationID = "ntf_1"
	notification, err := svc.UpdateNotification(context.Background(), cmd)
	if err != nil {
		t.Fatalf("UpdateNotification: %v", err)
	}
	if notification.CreatedBy != "staff-0" || !notification.CreatedAt.Equal(created) {
		t.Fatalf("provenance clobbered: %#v", notification)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected publish on inactive to active flip, got %d events", len(events.events))
	}

	// Updating an already active notification publishes nothing.
	if _, err := svc.UpdateNotification(context.Background(), cmd); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("active to active must not re-publish, got %d events", len(events.events))
	}
}

func TestNotificationServiceUpdateMissing(t *testing.T) {
	svc := newNotificationServiceForTest(t, newFakeNotificationRepo(), &fakeEvents{})

	cmd := validNotificationCommand()
	cmd.NotificationID = "ntf_missing"
	if _, err := svc.UpdateNotification(context.Background(), cmd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationServiceValidation(t *testing.T) {
	svc := newNotificationServiceForTest(t, newFakeNotificationRepo(), &fakeEvents{})

	cases := []struct {
		name string
		mut  func(cmd *UpsertNotificationCommand)
	}{
		{"missing title", func(cmd *UpsertNotificationCommand) { cmd.Title = " " }},
		{"missing message", func(cmd *UpsertNotificationCommand) { cmd.Message = "" }},
		{"unknown type", func(cmd *UpsertNotificationCommand) { cmd.Type = "alarm" }},
		{"unknown target", func(cmd *UpsertNotificationCommand) { cmd.Target = "staff" }},
	}
	for _, tc := range cases {
		cmd := validNotificationCommand()
		tc.mut(&cmd)
		if _, err := svc.CreateNotification(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestNotificationServiceListForwardsFilter(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.listPage = domain.Page[domain.Notification]{
		Items: []domain.Notification{{ID: "ntf_1"}},
		Page:  1, Limit: 20, Total: 1, TotalPages: 1,
	}
	svc := newNotificationServiceForTest(t, repo, &fakeEvents{})

	page, err := svc.ListNotifications(context.Background(), ListNotificationsCommand{
		ActiveOnly: true,
		Targets:    []domain.NotificationTarget{domain.NotificationTargetAll},
		Pagination: Pagination{Page: 1, Limit: 20},
	})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if !repo.lastFilter.ActiveOnly || len(repo.lastFilter.Targets) != 1 {
		t.Fatalf("filter not forwarded: %#v", repo.lastFilter)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ntf_1" {
		t.Fatalf("unexpected page: %#v", page)
	}
}
