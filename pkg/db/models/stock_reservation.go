package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/enums"
)

// StockReservation is a time-boxed hold on listing weight taken at checkout.
// A reservation is either committed when payment succeeds, or released on
// failure, cancellation, or expiry.
type StockReservation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID  uuid.UUID               `gorm:"column:listing_id;type:uuid;not null;index"`
	Weight     decimal.Decimal         `gorm:"column:weight;type:numeric(12,3);not null"`
	Status     enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'HELD'"`
	ExpiresAt  time.Time               `gorm:"column:expires_at;not null;index"`
	ResolvedAt *time.Time              `gorm:"column:resolved_at"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
