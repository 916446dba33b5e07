package enums

import "fmt"

// DeliveryStatus is the fulfillment state machine value.
type DeliveryStatus string

const (
	DeliveryStatusAwaitingFulfillment DeliveryStatus = "AWAITING_FULFILLMENT"
	DeliveryStatusInTransit           DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusReadyForPickup      DeliveryStatus = "READY_FOR_PICKUP"
	DeliveryStatusDelivered           DeliveryStatus = "DELIVERED"
	DeliveryStatusPickedUp            DeliveryStatus = "PICKED_UP"
	DeliveryStatusCancelled           DeliveryStatus = "CANCELLED"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusAwaitingFulfillment,
	DeliveryStatusInTransit,
	DeliveryStatusReadyForPickup,
	DeliveryStatusDelivered,
	DeliveryStatusPickedUp,
	DeliveryStatusCancelled,
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusAwaitingFulfillment: {DeliveryStatusInTransit, DeliveryStatusReadyForPickup, DeliveryStatusCancelled},
	DeliveryStatusInTransit:           {DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusReadyForPickup:      {DeliveryStatusPickedUp, DeliveryStatusCancelled},
	DeliveryStatusDelivered:           {},
	DeliveryStatusPickedUp:            {},
	DeliveryStatusCancelled:           {},
}

// IsValid reports whether the value matches the canonical delivery status enum.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the delivery lifecycle.
func (d DeliveryStatus) IsTerminal() bool {
	switch d {
	case DeliveryStatusDelivered, DeliveryStatusPickedUp, DeliveryStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to target.
func (d DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	for _, candidate := range deliveryTransitions[d] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts the raw string to DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
