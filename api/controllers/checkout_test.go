package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/internal/orders"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

type stubOrderService struct {
	checkoutResult *orders.CheckoutResult
	checkoutErr    error
	view           *orders.OrderView
	cancelled      *models.Order
	cancelErr      error
}

func (s *stubOrderService) Checkout(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return s.checkoutResult, nil
}

func (s *stubOrderService) Get(ctx context.Context, orderID uuid.UUID) (*orders.OrderView, error) {
	if s.view == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.view, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return s.cancelled, nil
}

func (s *stubOrderService) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	return 0, nil
}

func controllerTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:           uuid.New(),
		OrderNumber:  "A1B2C3D4",
		CustomerID:   uuid.New(),
		Status:       enums.OrderStatusAwaitingPayment,
		TotalAmount:  decimal.RequireFromString("1020.00"),
		PlatformFee:  decimal.RequireFromString("20.40"),
		FishermanNet: decimal.RequireFromString("999.60"),
		Phone:        "254712345678",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	}
}

func TestCheckoutControllerCreated(t *testing.T) {
	order := sampleOrder()
	svc := &stubOrderService{checkoutResult: &orders.CheckoutResult{
		Order: order,
		Payment: &models.PaymentTransaction{
			CheckoutRequestID: "ws_CO_123",
			Status:            enums.PaymentStatusInitiated,
			Amount:            order.TotalAmount,
		},
		CustomerMessage: "Check your phone to complete payment",
	}}

	body := `{
	  "customer_id": "` + order.CustomerID.String() + `",
	  "phone": "0712345678",
	  "lines": [{"listing_id": "` + uuid.NewString() + `", "weight_kg": "6.0"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Checkout(svc, controllerTestLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Order.OrderNumber != "A1B2C3D4" {
		t.Fatalf("unexpected order %+v", envelope.Data.Order)
	}
	if envelope.Data.Payment == nil || envelope.Data.Payment.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("unexpected payment %+v", envelope.Data.Payment)
	}
	if envelope.Data.CustomerMessage == "" {
		t.Fatal("customer message missing")
	}
}

func TestCheckoutControllerRejectsMissingLines(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"customer_id": "` + uuid.NewString() + `", "phone": "0712345678", "lines": []}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Checkout(svc, controllerTestLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutControllerMapsInsufficientStock(t *testing.T) {
	svc := &stubOrderService{checkoutErr: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"listing_id": uuid.NewString()})}
	body := `{"customer_id": "` + uuid.NewString() + `", "phone": "0712345678", "lines": [{"listing_id": "` + uuid.NewString() + `", "weight_kg": "6.0"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Checkout(svc, controllerTestLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}
