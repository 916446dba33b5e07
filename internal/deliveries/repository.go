package deliveries

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

// Repository persists deliveries and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, estimatedAt, deliveredAt *time.Time) (bool, error)
	AppendAudit(ctx context.Context, entry *models.DeliveryAuditLog) error
	ListAudit(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryAuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery repository backed by the provided DB.
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

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

// FindByOrder returns the order's delivery, or nil when the order has none
// (unpaid orders never get one).
func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	return r.findByOrder(ctx, orderID, false)
}

// FindByOrderForUpdate row-locks the delivery so concurrent transitions
// serialize. Call inside a transaction.
func (r *repository) FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	return r.findByOrder(ctx, orderID, true)
}

func (r *repository) findByOrder(ctx context.Context, orderID uuid.UUID, lock bool) (*models.Delivery, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var delivery models.Delivery
	err := query.First(&delivery, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if lock {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery for order")
			}
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// UpdateStatus moves the delivery between statuses with a first-writer-wins
// guard, carrying the ETA and delivered timestamps when the caller sets them.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, estimatedAt, deliveredAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if estimatedAt != nil {
		updates["estimated_at"] = *estimatedAt
	}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AppendAudit(ctx context.Context, entry *models.DeliveryAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListAudit(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryAuditLog, error) {
	var entries []models.DeliveryAuditLog
	err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
