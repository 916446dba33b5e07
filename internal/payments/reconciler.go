package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/internal/inventory"
	"github.com/omondidev/samaki-backend/internal/orders"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/metrics"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deliveryCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Outcome classifies what a callback delivery did.
type Outcome string

const (
	OutcomeSucceeded Outcome = metrics.ResultSucceeded
	OutcomeFailed    Outcome = metrics.ResultFailed
	OutcomeDuplicate Outcome = metrics.ResultDuplicate
	OutcomeUnknown   Outcome = metrics.ResultUnknown
	OutcomeMismatch  Outcome = metrics.ResultMismatch
)

// Reconciler applies gateway callbacks to payment transactions and drives
// the order, stock, and delivery consequences in one transaction.
type Reconciler struct {
	tx         txRunner
	repo       Repository
	orders     orders.Repository
	guard      inventory.Guard
	deliveries deliveryCreator
	logger     *logger.Logger
	metrics    *metrics.ReconcileMetrics
	now        func() time.Time
}

// NewReconciler builds the callback reconciler.
func NewReconciler(
	tx txRunner,
	repo Repository,
	ordersRepo orders.Repository,
	guard inventory.Guard,
	deliveries deliveryCreator,
	logg *logger.Logger,
	m *metrics.ReconcileMetrics,
) (*Reconciler, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery creator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		tx:         tx,
		repo:       repo,
		orders:     ordersRepo,
		guard:      guard,
		deliveries: deliveries,
		logger:     logg,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Reconcile applies one callback. Replays and late duplicates are no-ops:
// the row lock plus the INITIATED-only result write make the first terminal
// outcome stick regardless of delivery order or concurrency.
func (r *Reconciler) Reconcile(ctx context.Context, result *mpesa.CallbackResult) (Outcome, error) {
	started := r.now()
	outcome, err := r.reconcile(ctx, result)
	r.metrics.IncCallback(string(outcome))
	r.metrics.ObserveReconcile(string(outcome), r.now().Sub(started))
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, result *mpesa.CallbackResult) (Outcome, error) {
	if result == nil || result.CheckoutRequestID == "" {
		return OutcomeUnknown, pkgerrors.New(pkgerrors.CodeValidation, "callback result required")
	}
	ctx = r.logger.WithCheckoutRequestID(ctx, result.CheckoutRequestID)

	outcome := OutcomeUnknown
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		ordersRepo := r.orders.WithTx(tx)

		txn, err := repo.FindByCheckoutRequestIDForUpdate(ctx, result.CheckoutRequestID)
		if err != nil {
			return err
		}
		ctx := r.logger.WithOrderID(ctx, txn.OrderID.String())

		if txn.Status.IsTerminal() {
			outcome = OutcomeDuplicate
			r.logger.Info(ctx, "duplicate callback ignored")
			return nil
		}

		order, err := ordersRepo.FindByIDForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		now := r.now()

		if !result.Success {
			outcome = OutcomeFailed
			return r.fail(ctx, tx, repo, ordersRepo, txn.ID, order, result.ResultCode, result.ResultDesc, now)
		}

		// The push rounds fractional totals up to whole KES, so verify
		// against the same rounding. A zero amount means the source
		// (status query) reports no figure; trust the recorded amount.
		if !result.Amount.IsZero() && !result.Amount.Equal(txn.Amount.Ceil()) {
			// The failure writes must commit, or every redelivery
			// reprocesses the same mismatch.
			outcome = OutcomeMismatch
			r.logger.Warn(ctx, fmt.Sprintf("paid amount %s does not match expected %s, failing payment", result.Amount, txn.Amount.Ceil()))
			return r.fail(ctx, tx, repo, ordersRepo, txn.ID, order, result.ResultCode, "amount mismatch", now)
		}

		marked, err := repo.MarkResult(ctx, txn.ID, enums.PaymentStatusSucceeded, result.ResultCode, result.ResultDesc, result.Receipt, now)
		if err != nil {
			return err
		}
		if !marked {
			outcome = OutcomeDuplicate
			return nil
		}

		if order.Status.IsTerminal() {
			// payment landed after the order was failed or cancelled;
			// the money needs a manual refund
			r.logger.Warn(ctx, "payment succeeded for terminal order")
			outcome = OutcomeSucceeded
			return nil
		}

		// A callback can overtake checkout's own move to AWAITING_PAYMENT.
		status := order.Status
		if status == enums.OrderStatusPending {
			if _, err := ordersRepo.UpdateStatus(ctx, order.ID, status, enums.OrderStatusAwaitingPayment); err != nil {
				return err
			}
			status = enums.OrderStatusAwaitingPayment
		}
		moved, err := ordersRepo.UpdateStatus(ctx, order.ID, status, enums.OrderStatusPaid)
		if err != nil {
			return err
		}
		if !moved {
			r.logger.Warn(ctx, "payment succeeded but order already moved")
			outcome = OutcomeSucceeded
			return nil
		}

		if err := r.guard.Commit(ctx, tx, order.ID, now); err != nil {
			return err
		}
		if err := r.deliveries.CreateForOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		outcome = OutcomeSucceeded
		r.logger.Info(ctx, "payment reconciled, order paid")
		return nil
	})
	if err != nil {
		return OutcomeUnknown, err
	}
	return outcome, nil
}

// fail records the terminal failure and returns the holds to the listings.
func (r *Reconciler) fail(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	ordersRepo orders.Repository,
	txnID uuid.UUID,
	order *models.Order,
	resultCode int,
	resultDesc string,
	now time.Time,
) error {
	marked, err := repo.MarkResult(ctx, txnID, enums.PaymentStatusFailed, resultCode, resultDesc, "", now)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}
	if err := r.guard.Release(ctx, tx, order.ID, now); err != nil {
		return err
	}
	if order.Status.CanTransitionTo(enums.OrderStatusFailed) {
		if _, err := ordersRepo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusFailed); err != nil {
			return err
		}
	}
	r.logger.Info(ctx, "payment failed, holds released")
	return nil
}
