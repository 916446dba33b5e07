package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/enums"
)

// Order is a customer purchase across one or more listings. TotalAmount is
// always the exact sum of line subtotals; PlatformFee plus FishermanNet
// always equals TotalAmount.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber  string            `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID   uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	TotalAmount  decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PlatformFee  decimal.Decimal   `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	FishermanNet decimal.Decimal   `gorm:"column:fisherman_net;type:numeric(12,2);not null"`
	Phone        string            `gorm:"column:phone;not null"`
	ExpiresAt    time.Time         `gorm:"column:expires_at;not null;index"`
	Lines        []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
