package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

// ReservationRequest asks for a weight hold on one listing.
type ReservationRequest struct {
	ListingID uuid.UUID
	Weight    decimal.Decimal
}

// Guard arbitrates listing stock. All mutating calls expect to run inside
// the caller's transaction so holds and their records commit together.
type Guard interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, expiresAt time.Time, requests []ReservationRequest) ([]models.StockReservation, error)
	Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) error
}

type guard struct {
	repo Repository
}

// NewGuard builds the stock guard.
func NewGuard(repo Repository) (Guard, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &guard{repo: repo}, nil
}

// Reserve places a hold for every request or fails the whole batch. The
// surrounding transaction rolls back partial holds on failure.
func (g *guard) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, expiresAt time.Time, requests []ReservationRequest) ([]models.StockReservation, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation request is required")
	}

	repo := g.repo.WithTx(tx)
	reservations := make([]models.StockReservation, 0, len(requests))
	for _, req := range requests {
		if req.Weight.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation weight must be positive").
				WithDetails(map[string]any{"listing_id": req.ListingID})
		}

		listing, err := repo.FindListing(ctx, req.ListingID)
		if err != nil {
			return nil, err
		}
		if !listing.Active {
			return nil, pkgerrors.New(pkgerrors.CodeListingInactive, "listing is not active").
				WithDetails(map[string]any{"listing_id": req.ListingID})
		}

		held, err := repo.ReserveWeight(ctx, req.ListingID, req.Weight)
		if err != nil {
			return nil, err
		}
		if !held {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for listing").
				WithDetails(map[string]any{
					"listing_id": req.ListingID,
					"requested":  req.Weight.String(),
				})
		}

		reservation := models.StockReservation{
			ID:        uuid.New(),
			OrderID:   orderID,
			ListingID: req.ListingID,
			Weight:    req.Weight,
			Status:    enums.ReservationStatusHeld,
			ExpiresAt: expiresAt,
		}
		if err := repo.CreateReservation(ctx, &reservation); err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// Commit converts every HELD reservation for the order into a sale.
func (g *guard) Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) error {
	return g.resolveHeld(ctx, tx, orderID, enums.ReservationStatusCommitted, at)
}

// Release returns every HELD reservation for the order to the sellable
// balance. Already-resolved reservations are skipped, so repeated calls
// are harmless.
func (g *guard) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) error {
	return g.resolveHeld(ctx, tx, orderID, enums.ReservationStatusReleased, at)
}

func (g *guard) resolveHeld(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.ReservationStatus, at time.Time) error {
	repo := g.repo.WithTx(tx)
	reservations, err := repo.FindHeldByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	for _, reservation := range reservations {
		resolved, err := repo.ResolveReservation(ctx, reservation.ID, status, at)
		if err != nil {
			return err
		}
		if !resolved {
			// another worker already resolved it
			continue
		}

		var ok bool
		switch status {
		case enums.ReservationStatusCommitted:
			ok, err = repo.CommitWeight(ctx, reservation.ListingID, reservation.Weight)
		default:
			ok, err = repo.ReleaseWeight(ctx, reservation.ListingID, reservation.Weight)
		}
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "listing weight out of sync with reservation").
				WithDetails(map[string]any{
					"listing_id":     reservation.ListingID,
					"reservation_id": reservation.ID,
				})
		}
	}
	return nil
}
