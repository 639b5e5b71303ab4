package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bloomfield/api/internal/domain"
)

func newCheckoutServiceForTest(t *testing.T, checkout *fakeCheckoutRepo, items *fakeItemRepo, bouquets *fakeBouquetRepo, counters *stubCounterRepository, events *fakeEvents) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Checkout:    checkout,
		Items:       items,
		Bouquets:    bouquets,
		Counters:    counters,
		Clock:       fixedClock(time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)),
		IDGenerator: sequenceID("01AAA", "01BBB"),
		Events:      events,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return svc
}

func validCheckoutCommand() CheckoutCommand {
	return CheckoutCommand{
		OwnerID:       "user-1",
		PaymentMethod: domain.PaymentMethodOnline,
		Delivery: &DeliveryDetails{
			RecipientName:  "Jamie",
			RecipientPhone: "555-0100",
			Address:        domain.Address{Street: "1 Rose Lane", City: "Springfield"},
		},
	}
}

func TestCheckoutServiceCreatesOrderAndDelivery(t *testing.T) {
	items := newFakeItemRepo(domain.Item{
		ID:          "itm_rose",
		Name:        "Red Roses",
		Price:       500,
		IsAvailable: true,
		Stock:       10,
		Images:      []string{"https://img/rose.jpg"},
	})
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines: []domain.CartLine{{
				Kind:      domain.LineKindProduct,
				RefID:     "itm_rose",
				Quantity:  2,
				UnitPrice: 500,
				Subtotal:  1000,
			}},
			Total: 1000,
		},
	}
	counters := &stubCounterRepository{value: 1}
	events := &fakeEvents{}
	svc := newCheckoutServiceForTest(t, checkout, items, newFakeBouquetRepo(), counters, events)

	result, err := svc.Checkout(context.Background(), validCheckoutCommand())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	order := result.Order
	if order.Number != "BF-2025-000001" {
		t.Fatalf("unexpected order number: %q", order.Number)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid status for online payment, got %s", order.PaymentStatus)
	}
	if order.TotalAmount != 1000 {
		t.Fatalf("expected total 1000, got %d", order.TotalAmount)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 order line, got %d", len(order.Lines))
	}
	line := order.Lines[0]
	if line.Name != "Red Roses" || line.ImageURL != "https://img/rose.jpg" {
		t.Fatalf("expected snapshot name and image, got %#v", line)
	}

	if result.Delivery == nil {
		t.Fatalf("expected a delivery for a checkout with delivery details")
	}
	delivery := *result.Delivery
	if delivery.OrderID != order.ID {
		t.Fatalf("expected delivery linked to %s, got %s", order.ID, delivery.OrderID)
	}
	if delivery.Status != domain.DeliveryStatusPending {
		t.Fatalf("expected pending delivery, got %s", delivery.Status)
	}
	if len(delivery.TrackingUpdates) != 1 {
		t.Fatalf("expected 1 tracking update, got %d", len(delivery.TrackingUpdates))
	}
	tracking := delivery.TrackingUpdates[0]
	if tracking.Message != "Order placed - awaiting confirmation" {
		t.Fatalf("unexpected tracking message: %q", tracking.Message)
	}
	if tracking.UpdatedBy != "system" {
		t.Fatalf("expected system tracking author, got %q", tracking.UpdatedBy)
	}

	if !checkout.cartCleared {
		t.Fatalf("expected cart emptied by checkout")
	}

	if len(items.adjusted) != 1 || items.adjusted[0].ItemID != "itm_rose" || items.adjusted[0].Delta != -2 {
		t.Fatalf("expected stock decrement of 2, got %#v", items.adjusted)
	}

	if len(events.events) != 1 || events.events[0].Type != "order.created" {
		t.Fatalf("expected order.created event, got %#v", events.events)
	}
}

func TestCheckoutServicePickupSkipsDelivery(t *testing.T) {
	items := newFakeItemRepo(domain.Item{ID: "itm_rose", Name: "Roses", Price: 500, IsAvailable: true, Stock: 5})
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines:   []domain.CartLine{{Kind: domain.LineKindProduct, RefID: "itm_rose", Quantity: 1, UnitPrice: 500, Subtotal: 500}},
			Total:   500,
		},
	}
	svc := newCheckoutServiceForTest(t, checkout, items, newFakeBouquetRepo(), &stubCounterRepository{value: 7}, &fakeEvents{})

	result, err := svc.Checkout(context.Background(), CheckoutCommand{
		OwnerID:       "user-1",
		PaymentMethod: domain.PaymentMethodOnline,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Delivery != nil {
		t.Fatalf("pickup checkout must not create a delivery, got %#v", result.Delivery)
	}
	if result.Order.DeliveryID != "" {
		t.Fatalf("pickup order must not reference a delivery, got %q", result.Order.DeliveryID)
	}
	if !checkout.cartCleared {
		t.Fatalf("expected cart emptied by pickup checkout")
	}
}

func TestCheckoutServicePayOnDeliveryStaysUnpaid(t *testing.T) {
	items := newFakeItemRepo(domain.Item{ID: "itm_rose", Name: "Roses", Price: 500, IsAvailable: true, Stock: 5})
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines:   []domain.CartLine{{Kind: domain.LineKindProduct, RefID: "itm_rose", Quantity: 1, UnitPrice: 500, Subtotal: 500}},
			Total:   500,
		},
	}
	svc := newCheckoutServiceForTest(t, checkout, items, newFakeBouquetRepo(), &stubCounterRepository{value: 2}, &fakeEvents{})

	cmd := validCheckoutCommand()
	cmd.PaymentMethod = domain.PaymentMethodPayOnDelivery
	result, err := svc.Checkout(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid, got %s", result.Order.PaymentStatus)
	}
}

func TestCheckoutServiceRejectsEmptyCart(t *testing.T) {
	checkout := &fakeCheckoutRepo{cart: domain.Cart{OwnerID: "user-1", Lines: []domain.CartLine{}}}
	svc := newCheckoutServiceForTest(t, checkout, newFakeItemRepo(), newFakeBouquetRepo(), &stubCounterRepository{value: 3}, &fakeEvents{})

	_, err := svc.Checkout(context.Background(), validCheckoutCommand())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutServiceRejectsStaleStock(t *testing.T) {
	items := newFakeItemRepo(domain.Item{ID: "itm_rose", Name: "Roses", Price: 500, IsAvailable: true, Stock: 1})
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines:   []domain.CartLine{{Kind: domain.LineKindProduct, RefID: "itm_rose", Quantity: 3, UnitPrice: 500, Subtotal: 1500}},
			Total:   1500,
		},
	}
	svc := newCheckoutServiceForTest(t, checkout, items, newFakeBouquetRepo(), &stubCounterRepository{value: 4}, &fakeEvents{})

	_, err := svc.Checkout(context.Background(), validCheckoutCommand())
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if len(items.adjusted) != 0 {
		t.Fatalf("expected no stock adjustments on failed checkout, got %#v", items.adjusted)
	}
}

func TestCheckoutServiceNamesCustomLines(t *testing.T) {
	bouquets := newFakeBouquetRepo(domain.Bouquet{
		ID:            "bqt_1",
		OwnerID:       "user-1",
		RecipientName: "Alex",
		TotalPrice:    2500,
	})
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines:   []domain.CartLine{{Kind: domain.LineKindCustom, RefID: "bqt_1", Quantity: 1, UnitPrice: 2500, Subtotal: 2500}},
			Total:   2500,
		},
	}
	items := newFakeItemRepo()
	svc := newCheckoutServiceForTest(t, checkout, items, bouquets, &stubCounterRepository{value: 5}, &fakeEvents{})

	result, err := svc.Checkout(context.Background(), validCheckoutCommand())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Order.Lines[0].Name != "Custom Bouquet for Alex" {
		t.Fatalf("unexpected custom line name: %q", result.Order.Lines[0].Name)
	}
	if len(items.adjusted) != 0 {
		t.Fatalf("custom lines must not touch stock, got %#v", items.adjusted)
	}
}

func TestCheckoutServiceValidatesInput(t *testing.T) {
	svc := newCheckoutServiceForTest(t, &fakeCheckoutRepo{}, newFakeItemRepo(), newFakeBouquetRepo(), &stubCounterRepository{value: 6}, &fakeEvents{})

	cases := []struct {
		name string
		mut  func(cmd *CheckoutCommand)
	}{
		{"missing owner", func(cmd *CheckoutCommand) { cmd.OwnerID = " " }},
		{"unknown payment method", func(cmd *CheckoutCommand) { cmd.PaymentMethod = "barter" }},
		{"missing recipient", func(cmd *CheckoutCommand) { cmd.Delivery.RecipientName = "" }},
		{"missing street", func(cmd *CheckoutCommand) { cmd.Delivery.Address.Street = "" }},
		{"missing city", func(cmd *CheckoutCommand) { cmd.Delivery.Address.City = "" }},
	}
	for _, tc := range cases {
		cmd := validCheckoutCommand()
		tc.mut(&cmd)
		if _, err := svc.Checkout(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestCheckoutServiceCounterFailureAborts(t *testing.T) {
	counters := &stubCounterRepository{err: errors.New("counter down")}
	checkout := &fakeCheckoutRepo{
		cart: domain.Cart{
			OwnerID: "user-1",
			Lines:   []domain.CartLine{{Kind: domain.LineKindProduct, RefID: "itm_rose", Quantity: 1, UnitPrice: 500, Subtotal: 500}},
		},
	}
	svc := newCheckoutServiceForTest(t, checkout, newFakeItemRepo(), newFakeBouquetRepo(), counters, &fakeEvents{})

	if _, err := svc.Checkout(context.Background(), validCheckoutCommand()); err == nil {
		t.Fatalf("expected error when counter fails")
	}
	if checkout.cartCleared {
		t.Fatalf("cart must stay intact when numbering fails")
	}
}
