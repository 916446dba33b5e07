package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/omondidev/samaki-backend/internal/payments"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

const (
	defaultPollBatch = 50
	defaultPollAge   = 2 * time.Minute
)

type staleTransactionReader interface {
	FindStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
}

type statusQuerier interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

type callbackReconciler interface {
	Reconcile(ctx context.Context, result *mpesa.CallbackResult) (payments.Outcome, error)
}

// PaymentStatusPollJobParams configure the callback recovery poll.
type PaymentStatusPollJobParams struct {
	Logger    *logger.Logger
	Payments  staleTransactionReader
	Gateway   statusQuerier
	Reconcile callbackReconciler
	MinAge    time.Duration
	BatchSize int
}

// NewPaymentStatusPollJob builds the job that resolves pushes whose
// callback never arrived by querying the gateway directly.
func NewPaymentStatusPollJob(params PaymentStatusPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("status querier required")
	}
	if params.Reconcile == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultPollAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPollBatch
	}
	return &paymentStatusPollJob{
		logg:      params.Logger,
		payments:  params.Payments,
		gateway:   params.Gateway,
		reconcile: params.Reconcile,
		minAge:    minAge,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type paymentStatusPollJob struct {
	logg      *logger.Logger
	payments  staleTransactionReader
	gateway   statusQuerier
	reconcile callbackReconciler
	minAge    time.Duration
	batch     int
	now       func() time.Time
}

func (j *paymentStatusPollJob) Name() string { return "payment-status-poll" }

func (j *paymentStatusPollJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	stale, err := j.payments.FindStaleInitiated(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale payments: %w", err)
	}

	var errs []error
	resolved := 0
	for _, txn := range stale {
		done, err := j.poll(ctx, txn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			resolved++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"checked": len(stale), "resolved": resolved})
	j.logg.Info(logCtx, "payment status poll complete")
	return multierr.Combine(errs...)
}

// poll asks the gateway for the push outcome and feeds it through the same
// reconciliation path a callback would take. The gateway errors while the
// push is still on the customer's screen; that just means try again next
// cycle.
func (j *paymentStatusPollJob) poll(ctx context.Context, txn models.PaymentTransaction) (bool, error) {
	ctx = j.logg.WithCheckoutRequestID(ctx, txn.CheckoutRequestID)
	resp, err := j.gateway.QueryStatus(ctx, txn.CheckoutRequestID)
	if err != nil {
		j.logg.Info(j.logg.WithField(ctx, "reason", err.Error()), "status query unresolved")
		return false, nil
	}
	if resp.ResultCode == "" {
		return false, nil
	}
	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return false, fmt.Errorf("parse result code %q: %w", resp.ResultCode, err)
	}

	// A status query carries no paid amount, so the reconciler trusts the
	// recorded figure.
	_, err = j.reconcile.Reconcile(ctx, &mpesa.CallbackResult{
		CheckoutRequestID: txn.CheckoutRequestID,
		MerchantRequestID: txn.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        resp.ResultDesc,
		Success:           code == 0,
	})
	if err != nil {
		return false, fmt.Errorf("reconcile %s: %w", txn.CheckoutRequestID, err)
	}
	return true, nil
}
