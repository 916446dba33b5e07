package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a fisherman's catch offered for sale. AvailableWeight minus
// ReservedWeight is the sellable balance; both are maintained with atomic
// arithmetic updates, never read-modify-write.
type Listing struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FishermanID     uuid.UUID       `gorm:"column:fisherman_id;type:uuid;not null"`
	Title           string          `gorm:"column:title;not null"`
	Species         string          `gorm:"column:species;not null"`
	PricePerKg      decimal.Decimal `gorm:"column:price_per_kg;type:numeric(12,2);not null"`
	AvailableWeight decimal.Decimal `gorm:"column:available_weight;type:numeric(12,3);not null;default:0"`
	ReservedWeight  decimal.Decimal `gorm:"column:reserved_weight;type:numeric(12,3);not null;default:0"`
	// No struct-level default: gorm would skip the zero value and an
	// inactive listing could never be written through the model.
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
