package deliveries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UpdateInput carries one requested delivery transition. EstimatedAt lets a
// courier attach an ETA alongside the transition.
type UpdateInput struct {
	OrderID     uuid.UUID
	Target      enums.DeliveryStatus
	ActorID     uuid.UUID
	ActorRole   enums.ActorRole
	Note        *string
	EstimatedAt *time.Time
}

// Service tracks fulfillment for paid orders.
type Service interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	UpdateStatus(ctx context.Context, input UpdateInput) (*models.Delivery, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, []models.DeliveryAuditLog, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	logger *logger.Logger
}

// NewService builds the delivery service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, logger: logg}, nil
}

// CreateForOrder opens the delivery record when payment reconciliation
// marks the order paid. Runs inside the reconciliation transaction.
func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return repo.Create(ctx, &models.Delivery{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  enums.DeliveryStatusAwaitingFulfillment,
	})
}

// UpdateStatus applies one transition and appends the audit entry in the
// same transaction. Customers cannot drive transitions.
func (s *service) UpdateStatus(ctx context.Context, input UpdateInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if !input.ActorRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}
	if !input.ActorRole.CanUpdateDelivery() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role may not update deliveries")
	}

	var updated *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !delivery.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status transition disallowed").
				WithDetails(map[string]any{"from": delivery.Status, "to": input.Target})
		}

		var deliveredAt *time.Time
		if input.Target == enums.DeliveryStatusDelivered {
			now := time.Now().UTC()
			deliveredAt = &now
		}
		moved, err := repo.UpdateStatus(ctx, delivery.ID, delivery.Status, input.Target, input.EstimatedAt, deliveredAt)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery moved concurrently")
		}

		entry := &models.DeliveryAuditLog{
			ID:         uuid.New(),
			DeliveryID: delivery.ID,
			FromStatus: delivery.Status,
			ToStatus:   input.Target,
			ActorID:    input.ActorID,
			ActorRole:  input.ActorRole,
			Note:       input.Note,
		}
		if err := repo.AppendAudit(ctx, entry); err != nil {
			return err
		}

		delivery.Status = input.Target
		if input.EstimatedAt != nil {
			delivery.EstimatedAt = input.EstimatedAt
		}
		delivery.DeliveredAt = deliveredAt
		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithOrderID(ctx, input.OrderID.String()), "delivery status updated")
	return updated, nil
}

// GetByOrder returns the delivery and its audit trail.
func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, []models.DeliveryAuditLog, error) {
	if orderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	delivery, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if delivery == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery for order")
	}
	audit, err := s.repo.ListAudit(ctx, delivery.ID)
	if err != nil {
		return nil, nil, err
	}
	return delivery, audit, nil
}
