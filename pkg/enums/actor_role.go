package enums

import "fmt"

// ActorRole tags the capability of the actor driving a delivery update.
type ActorRole string

const (
	ActorRoleCustomer  ActorRole = "customer"
	ActorRoleFisherman ActorRole = "fisherman"
	ActorRoleCourier   ActorRole = "courier"
	ActorRoleAdmin     ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleFisherman,
	ActorRoleCourier,
	ActorRoleAdmin,
}

// IsValid reports whether the value matches the canonical actor role enum.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// CanUpdateDelivery reports whether the role may drive delivery transitions.
func (a ActorRole) CanUpdateDelivery() bool {
	switch a {
	case ActorRoleFisherman, ActorRoleCourier, ActorRoleAdmin:
		return true
	}
	return false
}

// ParseActorRole converts the raw string to ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
