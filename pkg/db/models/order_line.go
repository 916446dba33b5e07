package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is one listing's share of an order. UnitPrice is the listing
// price captured at checkout; Subtotal = round(UnitPrice * Weight, 2).
type OrderLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	Weight    decimal.Decimal `gorm:"column:weight;type:numeric(12,3);not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	// Per-line commission split, used for fisherman payouts. The order-level
	// split stays authoritative for the amount charged.
	PlatformFee  decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	FishermanNet decimal.Decimal `gorm:"column:fisherman_net;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
