package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusAwaitingPayment, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPaid, false},
		{OrderStatusAwaitingPayment, OrderStatusPaid, true},
		{OrderStatusAwaitingPayment, OrderStatusFailed, true},
		{OrderStatusAwaitingPayment, OrderStatusPending, false},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusFailed, OrderStatusAwaitingPayment, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusAwaitingPayment} {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestDeliveryStatusTransitions(t *testing.T) {
	cases := []struct {
		from    DeliveryStatus
		to      DeliveryStatus
		allowed bool
	}{
		{DeliveryStatusAwaitingFulfillment, DeliveryStatusInTransit, true},
		{DeliveryStatusAwaitingFulfillment, DeliveryStatusReadyForPickup, true},
		{DeliveryStatusAwaitingFulfillment, DeliveryStatusDelivered, false},
		{DeliveryStatusInTransit, DeliveryStatusDelivered, true},
		{DeliveryStatusInTransit, DeliveryStatusPickedUp, false},
		{DeliveryStatusReadyForPickup, DeliveryStatusPickedUp, true},
		{DeliveryStatusReadyForPickup, DeliveryStatusDelivered, false},
		{DeliveryStatusDelivered, DeliveryStatusCancelled, false},
		{DeliveryStatusPickedUp, DeliveryStatusInTransit, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseOrderStatus("PENDING"); err != nil {
		t.Fatalf("expected PENDING to parse: %v", err)
	}
	if _, err := ParseOrderStatus("pending"); err == nil {
		t.Fatal("expected lowercase order status to fail")
	}
	if _, err := ParsePaymentStatus("SUCCEEDED"); err != nil {
		t.Fatalf("expected SUCCEEDED to parse: %v", err)
	}
	if _, err := ParseDeliveryStatus("IN_TRANSIT"); err != nil {
		t.Fatalf("expected IN_TRANSIT to parse: %v", err)
	}
	if _, err := ParseReservationStatus("HELD"); err != nil {
		t.Fatalf("expected HELD to parse: %v", err)
	}
	if _, err := ParseActorRole("courier"); err != nil {
		t.Fatalf("expected courier to parse: %v", err)
	}
	if _, err := ParseActorRole("COURIER"); err == nil {
		t.Fatal("expected uppercase actor role to fail")
	}
}

func TestActorRoleCanUpdateDelivery(t *testing.T) {
	if ActorRoleCustomer.CanUpdateDelivery() {
		t.Fatal("customer must not update deliveries")
	}
	for _, r := range []ActorRole{ActorRoleFisherman, ActorRoleCourier, ActorRoleAdmin} {
		if !r.CanUpdateDelivery() {
			t.Errorf("expected %s to update deliveries", r)
		}
	}
}
