package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

type stubPusher struct {
	req  mpesa.STKPushRequest
	resp *mpesa.STKPushResponse
	err  error
}

func (s *stubPusher) STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestInitiateRecordsTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	pusher := &stubPusher{resp: &mpesa.STKPushResponse{
		CheckoutRequestID: "ws_CO_260826001",
		MerchantRequestID: "mr-260826",
		ResponseCode:      "0",
	}}
	initiator, err := NewInitiator(NewRepository(db), pusher, testLogger(), nil)
	if err != nil {
		t.Fatalf("new initiator: %v", err)
	}

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "A1B2C3D4",
		Phone:       "254712345678",
		TotalAmount: decimal.RequireFromString("1499.50"),
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	txn, err := initiator.Initiate(context.Background(), order)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if pusher.req.AccountReference != "ORDERA1B2C3D4" {
		t.Fatalf("unexpected account reference %q", pusher.req.AccountReference)
	}
	if !pusher.req.Amount.Equal(order.TotalAmount) {
		t.Fatalf("gateway got amount %s", pusher.req.Amount)
	}

	var stored models.PaymentTransaction
	if err := db.First(&stored, "id = ?", txn.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if stored.CheckoutRequestID != "ws_CO_260826001" {
		t.Fatalf("unexpected checkout request id %q", stored.CheckoutRequestID)
	}
	if stored.Status != enums.PaymentStatusInitiated {
		t.Fatalf("expected INITIATED, got %s", stored.Status)
	}
	if !stored.Amount.Equal(order.TotalAmount) {
		t.Fatalf("stored amount %s", stored.Amount)
	}
}

func TestInitiateGatewayFailureWritesNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	pusher := &stubPusher{err: pkgerrors.New(pkgerrors.CodeGatewayRejected, "invalid shortcode")}
	initiator, err := NewInitiator(NewRepository(db), pusher, testLogger(), nil)
	if err != nil {
		t.Fatalf("new initiator: %v", err)
	}

	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "A1B2C3D4",
		Phone:       "254712345678",
		TotalAmount: decimal.RequireFromString("500.00"),
	}
	_, err = initiator.Initiate(context.Background(), order)
	if !pkgerrors.HasCode(err, pkgerrors.CodeGatewayRejected) {
		t.Fatalf("expected GATEWAY_REJECTED, got %v", err)
	}

	var count int64
	if err := db.Model(&models.PaymentTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed initiation persisted %d rows", count)
	}
}
