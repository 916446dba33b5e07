package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

// Repository exposes listing stock arithmetic and reservation records.
// The weight mutations are single atomic UPDATEs with arithmetic guards;
// a zero RowsAffected means the guard lost.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ReserveWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error)
	CommitWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error)
	ReleaseWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error)
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	FindHeldByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	ResolveReservation(ctx context.Context, id uuid.UUID, status enums.ReservationStatus, at time.Time) (bool, error)
	FindExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository backed by the provided DB.
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

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, err
	}
	return &listing, nil
}

// ReserveWeight holds weight against a listing. The arithmetic guard keeps
// the hold within the unreserved balance under concurrent checkouts.
func (r *repository) ReserveWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND active = ? AND available_weight - reserved_weight >= CAST(? AS NUMERIC)", listingID, true, weight).
		Update("reserved_weight", gorm.Expr("reserved_weight + ?", weight))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CommitWeight converts a hold into a sale, shrinking both balances.
func (r *repository) CommitWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND reserved_weight >= CAST(? AS NUMERIC) AND available_weight >= CAST(? AS NUMERIC)", listingID, weight, weight).
		Updates(map[string]any{
			"available_weight": gorm.Expr("available_weight - ?", weight),
			"reserved_weight":  gorm.Expr("reserved_weight - ?", weight),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseWeight returns a hold to the sellable balance.
func (r *repository) ReleaseWeight(ctx context.Context, listingID uuid.UUID, weight decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND reserved_weight >= CAST(? AS NUMERIC)", listingID, weight).
		Update("reserved_weight", gorm.Expr("reserved_weight - ?", weight))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindHeldByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusHeld).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// ResolveReservation flips a HELD reservation to a terminal status. The
// status guard makes resolution idempotent under concurrent sweeps.
func (r *repository) ResolveReservation(ctx context.Context, id uuid.UUID, status enums.ReservationStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusHeld).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindExpiredHeld(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.ReservationStatusHeld, now).
		Order("expires_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
