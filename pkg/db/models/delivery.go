package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omondidev/samaki-backend/pkg/enums"
)

// Delivery tracks fulfillment of a paid order. Created exactly once, by the
// reconciliation that moves the order to PAID.
type Delivery struct {
	ID      uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status  enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'AWAITING_FULFILLMENT'"`
	Notes   *string              `gorm:"column:notes"`
	// EstimatedAt is the courier's ETA; DeliveredAt is stamped on the
	// transition to DELIVERED.
	EstimatedAt *time.Time         `gorm:"column:estimated_at"`
	DeliveredAt *time.Time         `gorm:"column:delivered_at"`
	AuditLogs   []DeliveryAuditLog `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
