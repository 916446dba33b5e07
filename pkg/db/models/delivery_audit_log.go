package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omondidev/samaki-backend/pkg/enums"
)

// DeliveryAuditLog is an append-only record of one delivery transition,
// written in the same transaction as the status change.
type DeliveryAuditLog struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID uuid.UUID            `gorm:"column:delivery_id;type:uuid;not null;index"`
	FromStatus enums.DeliveryStatus `gorm:"column:from_status;type:text;not null"`
	ToStatus   enums.DeliveryStatus `gorm:"column:to_status;type:text;not null"`
	ActorID    uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole  enums.ActorRole      `gorm:"column:actor_role;type:text;not null"`
	Note       *string              `gorm:"column:note"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
