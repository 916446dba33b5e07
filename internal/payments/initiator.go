package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/metrics"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

type stkPusher interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

// Initiator pushes the payment prompt for a priced order and records the
// attempt.
type Initiator struct {
	repo    Repository
	gateway stkPusher
	logger  *logger.Logger
	metrics *metrics.ReconcileMetrics
}

// NewInitiator builds the payment initiator.
func NewInitiator(repo Repository, gateway stkPusher, logg *logger.Logger, m *metrics.ReconcileMetrics) (*Initiator, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Initiator{repo: repo, gateway: gateway, logger: logg, metrics: m}, nil
}

// Initiate asks the gateway to prompt the customer and persists the attempt
// as INITIATED. The transaction row is only written once the gateway hands
// back a CheckoutRequestID, since that is the correlation key callbacks
// match on.
func (i *Initiator) Initiate(ctx context.Context, order *models.Order) (*models.PaymentTransaction, error) {
	resp, err := i.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            order.Phone,
		Amount:           order.TotalAmount,
		OrderNumber:      order.OrderNumber,
		AccountReference: "ORDER" + order.OrderNumber,
	})
	if err != nil {
		i.metrics.IncSTKPush("rejected")
		return nil, err
	}
	i.metrics.IncSTKPush("accepted")

	txn := &models.PaymentTransaction{
		ID:                uuid.New(),
		OrderID:           order.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Phone:             order.Phone,
		Amount:            order.TotalAmount,
		Status:            enums.PaymentStatusInitiated,
	}
	if err := i.repo.Create(ctx, txn); err != nil {
		return nil, err
	}

	i.logger.Info(i.logger.WithCheckoutRequestID(ctx, txn.CheckoutRequestID), "payment initiated")
	return txn, nil
}
