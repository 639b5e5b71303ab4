package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
)

func newDeliveryServiceForTest(t *testing.T, deliveries *fakeDeliveryRepo, events *fakeEvents, audit *recordingAudit) DeliveryService {
	t.Helper()
	svc, err := NewDeliveryService(DeliveryServiceDeps{
		Deliveries:  deliveries,
		Clock:       fixedClock(time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)),
		IDGenerator: staticID("01CCC"),
		Events:      events,
		Audit:       audit,
	})
	if err != nil {
		t.Fatalf("NewDeliveryService: %v", err)
	}
	return svc
}

func validCreateDeliveryCommand() CreateDeliveryCommand {
	return CreateDeliveryCommand{
		OrderID:       "ord_1",
		RecipientName: "Jamie",
		Address:       domain.Address{Street: "1 Rose Lane", City: "Springfield"},
		ActorID:       "staff-1",
	}
}

func TestDeliveryServiceCreateDelivery(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusConfirmed}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	delivery, err := svc.CreateDelivery(context.Background(), validCreateDeliveryCommand())
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	if delivery.ID != "dlv_01CCC" {
		t.Fatalf("unexpected delivery id %q", delivery.ID)
	}
	if delivery.Status != domain.DeliveryStatusPending {
		t.Fatalf("expected pending, got %s", delivery.Status)
	}
	if delivery.OwnerID != "user-1" {
		t.Fatalf("owner must be copied from the order, got %q", delivery.OwnerID)
	}
	if len(delivery.TrackingUpdates) != 1 || delivery.TrackingUpdates[0].Message != "Delivery scheduled" {
		t.Fatalf("unexpected tracking seed: %#v", delivery.TrackingUpdates)
	}
	if deliveries.orders["ord_1"].DeliveryID != "dlv_01CCC" {
		t.Fatalf("order back-reference not set")
	}
}

func TestDeliveryServiceCreateRejectsCancelledOrder(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusCancelled}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	_, err := svc.CreateDelivery(context.Background(), validCreateDeliveryCommand())
	if !errors.Is(err, ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
}

func TestDeliveryServiceCreateRejectsDuplicate(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusConfirmed, DeliveryID: "dlv_existing"}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	_, err := svc.CreateDelivery(context.Background(), validCreateDeliveryCommand())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDeliveryServiceCreateMissingOrder(t *testing.T) {
	svc := newDeliveryServiceForTest(t, newFakeDeliveryRepo(), &fakeEvents{}, nil)

	_, err := svc.CreateDelivery(context.Background(), validCreateDeliveryCommand())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeliveryServiceGetDeliveryEnforcesOwnership(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1"}
	audit := &recordingAudit{}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, audit)

	if _, err := svc.GetDelivery(context.Background(), GetDeliveryCommand{DeliveryID: "dlv_1", ActorID: "user-1"}); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err := svc.GetDelivery(context.Background(), GetDeliveryCommand{DeliveryID: "dlv_1", ActorID: "intruder"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if len(audit.records) != 1 || audit.records[0].Action != "delivery.access.denied" {
		t.Fatalf("expected denial audited, got %#v", audit.records)
	}
}

func TestDeliveryServiceGetDeliveryByOrder(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1"}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	delivery, err := svc.GetDeliveryByOrder(context.Background(), GetDeliveryByOrderCommand{OrderID: "ord_1", ActorID: "user-1"})
	if err != nil {
		t.Fatalf("GetDeliveryByOrder: %v", err)
	}
	if delivery.ID != "dlv_1" {
		t.Fatalf("unexpected delivery %q", delivery.ID)
	}

	if _, err := svc.GetDeliveryByOrder(context.Background(), GetDeliveryByOrderCommand{OrderID: "ord_missing", ActorID: "user-1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeliveryServiceListRejectsUnknownStatus(t *testing.T) {
	svc := newDeliveryServiceForTest(t, newFakeDeliveryRepo(), &fakeEvents{}, nil)

	_, err := svc.ListDeliveries(context.Background(), ListDeliveriesCommand{
		Status: []domain.DeliveryStatus{"lost"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeliveryServiceInTransitForcesOrderOut(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusPreparing, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1", Status: domain.DeliveryStatusAssigned}
	events := &fakeEvents{}
	svc := newDeliveryServiceForTest(t, deliveries, events, nil)

	delivery, err := svc.UpdateStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: "dlv_1",
		Target:     domain.DeliveryStatusInTransit,
		ActorID:    "courier-1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if delivery.Status != domain.DeliveryStatusInTransit {
		t.Fatalf("expected in_transit, got %s", delivery.Status)
	}
	last := delivery.TrackingUpdates[len(delivery.TrackingUpdates)-1]
	if last.Message != "Package is out for delivery" || last.UpdatedBy != "courier-1" {
		t.Fatalf("unexpected tracking entry: %#v", last)
	}
	if deliveries.orders["ord_1"].Status != domain.OrderStatusOutForDelivery {
		t.Fatalf("expected order forced to out_for_delivery, got %s", deliveries.orders["ord_1"].Status)
	}
	if len(events.events) != 1 || events.events[0].Type != "delivery.status.changed" {
		t.Fatalf("expected delivery.status.changed event, got %#v", events.events)
	}
}

func TestDeliveryServiceDeliveredStampsAndForcesOrder(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusOutForDelivery, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1", Status: domain.DeliveryStatusInTransit}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	delivery, err := svc.UpdateStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: "dlv_1",
		Target:     domain.DeliveryStatusDelivered,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if delivery.Status != domain.DeliveryStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivery.Status)
	}
	if delivery.DeliveredAt == nil {
		t.Fatalf("DeliveredAt not stamped")
	}
	last := delivery.TrackingUpdates[len(delivery.TrackingUpdates)-1]
	if last.Message != "Package delivered successfully" || last.UpdatedBy != "system" {
		t.Fatalf("unexpected tracking entry: %#v", last)
	}
	if deliveries.orders["ord_1"].Status != domain.OrderStatusDelivered {
		t.Fatalf("expected order forced to delivered, got %s", deliveries.orders["ord_1"].Status)
	}
}

func TestDeliveryServiceProgressSkipsCancelledOrder(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", OwnerID: "user-1", Status: domain.OrderStatusCancelled, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1", Status: domain.DeliveryStatusAssigned}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	if _, err := svc.UpdateStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: "dlv_1",
		Target:     domain.DeliveryStatusInTransit,
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if deliveries.orders["ord_1"].Status != domain.OrderStatusCancelled {
		t.Fatalf("cancelled order must not be forced, got %s", deliveries.orders["ord_1"].Status)
	}
}

func TestDeliveryServiceUpdateStatusRejectsTerminal(t *testing.T) {
	for _, status := range []domain.DeliveryStatus{domain.DeliveryStatusDelivered, domain.DeliveryStatusCancelled} {
		deliveries := newFakeDeliveryRepo()
		deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", Status: domain.OrderStatusPreparing, DeliveryID: "dlv_1"}
		deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", Status: status}
		svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

		_, err := svc.UpdateStatus(context.Background(), UpdateDeliveryStatusCommand{
			DeliveryID: "dlv_1",
			Target:     domain.DeliveryStatusInTransit,
		})
		if !errors.Is(err, ErrDeliveryFrozen) {
			t.Fatalf("status %s: expected ErrDeliveryFrozen, got %v", status, err)
		}
	}
}

func TestDeliveryServiceUpdateStatusRejectsCancelTarget(t *testing.T) {
	svc := newDeliveryServiceForTest(t, newFakeDeliveryRepo(), &fakeEvents{}, nil)

	_, err := svc.UpdateStatus(context.Background(), UpdateDeliveryStatusCommand{
		DeliveryID: "dlv_1",
		Target:     domain.DeliveryStatusCancelled,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeliveryServiceAppendTracking(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", Status: domain.OrderStatusDelivered, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", Status: domain.DeliveryStatusDelivered}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	delivery, err := svc.AppendTracking(context.Background(), AppendTrackingCommand{
		DeliveryID: "dlv_1",
		Message:    "Left with neighbour",
		ActorID:    "courier-1",
	})
	if err != nil {
		t.Fatalf("delivered record must still accept notes: %v", err)
	}
	last := delivery.TrackingUpdates[len(delivery.TrackingUpdates)-1]
	if last.Message != "Left with neighbour" || last.UpdatedBy != "courier-1" {
		t.Fatalf("unexpected tracking entry: %#v", last)
	}
}

func TestDeliveryServiceAppendTrackingFrozenWhenCancelled(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", Status: domain.OrderStatusCancelled, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", Status: domain.DeliveryStatusCancelled}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	_, err := svc.AppendTracking(context.Background(), AppendTrackingCommand{
		DeliveryID: "dlv_1",
		Message:    "note",
	})
	if !errors.Is(err, ErrDeliveryFrozen) {
		t.Fatalf("expected ErrDeliveryFrozen, got %v", err)
	}
}

func TestDeliveryServiceCancel(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", Status: domain.OrderStatusPreparing, DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", OwnerID: "user-1", Status: domain.DeliveryStatusAssigned}
	events := &fakeEvents{}
	svc := newDeliveryServiceForTest(t, deliveries, events, nil)

	delivery, err := svc.Cancel(context.Background(), CancelDeliveryCommand{
		DeliveryID: "dlv_1",
		Reason:     "address unreachable",
		ActorID:    "staff-1",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if delivery.Status != domain.DeliveryStatusCancelled {
		t.Fatalf("expected cancelled, got %s", delivery.Status)
	}
	last := delivery.TrackingUpdates[len(delivery.TrackingUpdates)-1]
	if last.Message != "Delivery cancelled. Reason: address unreachable" {
		t.Fatalf("unexpected cancel message: %q", last.Message)
	}
	// The order is untouched; rescheduling or cancelling it is a separate call.
	if deliveries.orders["ord_1"].Status != domain.OrderStatusPreparing {
		t.Fatalf("order must not cascade from delivery cancel, got %s", deliveries.orders["ord_1"].Status)
	}
	if len(events.events) != 1 || events.events[0].Type != "delivery.cancelled" {
		t.Fatalf("expected delivery.cancelled event, got %#v", events.events)
	}
}

func TestDeliveryServiceCancelGates(t *testing.T) {
	cases := []struct {
		status domain.DeliveryStatus
		want   error
	}{
		{domain.DeliveryStatusCancelled, ErrAlreadyCancelled},
		{domain.DeliveryStatusDelivered, ErrCompletedDelivery},
	}
	for _, tc := range cases {
		deliveries := newFakeDeliveryRepo()
		deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", DeliveryID: "dlv_1"}
		deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", Status: tc.status}
		svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

		_, err := svc.Cancel(context.Background(), CancelDeliveryCommand{DeliveryID: "dlv_1"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %s: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestDeliveryServiceCancelWithoutReason(t *testing.T) {
	deliveries := newFakeDeliveryRepo()
	deliveries.orders["ord_1"] = &domain.Order{ID: "ord_1", DeliveryID: "dlv_1"}
	deliveries.deliveries["dlv_1"] = &domain.Delivery{ID: "dlv_1", OrderID: "ord_1", Status: domain.DeliveryStatusPending}
	svc := newDeliveryServiceForTest(t, deliveries, &fakeEvents{}, nil)

	delivery, err := svc.Cancel(context.Background(), CancelDeliveryCommand{DeliveryID: "dlv_1"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	last := delivery.TrackingUpdates[len(delivery.TrackingUpdates)-1]
	if last.Message != "Delivery cancelled" {
		t.Fatalf("unexpected message: %q", last.Message)
	}
	if last.UpdatedBy != "system" {
		t.Fatalf("expected system author when no actor given, got %q", last.UpdatedBy)
	}
}
