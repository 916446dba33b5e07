package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

// Repository persists payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentTransaction, error)
	FindByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*models.PaymentTransaction, error)
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	MarkResult(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, resultCode int, resultDesc, receipt string, at time.Time) (bool, error)
	FindStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.PaymentTransaction, error) {
	return r.findByCheckoutRequestID(ctx, checkoutRequestID, false)
}

// FindByCheckoutRequestIDForUpdate row-locks the transaction so concurrent
// callback deliveries serialize. Call inside a transaction.
func (r *repository) FindByCheckoutRequestIDForUpdate(ctx context.Context, checkoutRequestID string) (*models.PaymentTransaction, error) {
	return r.findByCheckoutRequestID(ctx, checkoutRequestID, true)
}

func (r *repository) findByCheckoutRequestID(ctx context.Context, checkoutRequestID string, lock bool) (*models.PaymentTransaction, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var txn models.PaymentTransaction
	err := query.First(&txn, "checkout_request_id = ?", checkoutRequestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownTransaction, "no transaction for checkout request id").
				WithDetails(map[string]any{"checkout_request_id": checkoutRequestID})
		}
		return nil, err
	}
	return &txn, nil
}

// FindLatestByOrder returns the most recent attempt for the order, or nil
// when none exists.
func (r *repository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at desc").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// MarkResult finalizes an INITIATED transaction. The status guard means only
// the first result wins; later deliveries see zero rows.
func (r *repository) MarkResult(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, resultCode int, resultDesc, receipt string, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "payment result must be terminal")
	}
	updates := map[string]any{
		"status":        status,
		"result_code":   resultCode,
		"result_desc":   resultDesc,
		"reconciled_at": at,
	}
	if receipt != "" {
		updates["mpesa_receipt"] = receipt
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusInitiated).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindStaleInitiated lists attempts that never got a callback, oldest first.
func (r *repository) FindStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", enums.PaymentStatusInitiated, olderThan).
		Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
