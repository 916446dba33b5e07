package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/enums"
)

// PaymentTransaction records one STK push attempt and its reconciliation
// outcome. CheckoutRequestID is the gateway correlation key and is unique:
// a callback that cannot match a row here is an unknown transaction.
type PaymentTransaction struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	CheckoutRequestID string              `gorm:"column:checkout_request_id;not null;uniqueIndex"`
	MerchantRequestID string              `gorm:"column:merchant_request_id;not null"`
	Phone             string              `gorm:"column:phone;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'INITIATED'"`
	MpesaReceipt      *string             `gorm:"column:mpesa_receipt"`
	ResultCode        *int                `gorm:"column:result_code"`
	ResultDesc        *string             `gorm:"column:result_desc"`
	ReconciledAt      *time.Time          `gorm:"column:reconciled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
