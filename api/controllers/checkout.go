package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/api/responses"
	"github.com/omondidev/samaki-backend/api/validators"
	"github.com/omondidev/samaki-backend/internal/orders"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

// Checkout reserves stock for the requested lines and pushes the payment
// prompt to the customer's phone.
func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]orders.CheckoutLine, len(payload.Lines))
		for i, line := range payload.Lines {
			lines[i] = orders.CheckoutLine{ListingID: line.ListingID, Weight: line.WeightKg}
		}

		result, err := svc.Checkout(r.Context(), orders.CheckoutInput{
			CustomerID: payload.CustomerID,
			Phone:      payload.Phone,
			Lines:      lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	CustomerID uuid.UUID             `json:"customer_id" validate:"required"`
	Phone      string                `json:"phone" validate:"required"`
	Lines      []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkoutLineRequest struct {
	ListingID uuid.UUID       `json:"listing_id" validate:"required"`
	WeightKg  decimal.Decimal `json:"weight_kg" validate:"required"`
}

type checkoutResponse struct {
	Order           orderResponse    `json:"order"`
	Payment         *paymentResponse `json:"payment,omitempty"`
	CustomerMessage string           `json:"customer_message"`
}

type orderResponse struct {
	OrderID      uuid.UUID           `json:"order_id"`
	OrderNumber  string              `json:"order_number"`
	Status       string              `json:"status"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	PlatformFee  decimal.Decimal     `json:"platform_fee"`
	FishermanNet decimal.Decimal     `json:"fisherman_net"`
	Phone        string              `json:"phone"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Lines        []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ListingID uuid.UUID       `json:"listing_id"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type paymentResponse struct {
	CheckoutRequestID string          `json:"checkout_request_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	MpesaReceipt      *string         `json:"mpesa_receipt,omitempty"`
	ResultDesc        *string         `json:"result_desc,omitempty"`
}

func newCheckoutResponse(result *orders.CheckoutResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		Order:           newOrderResponse(result.Order),
		Payment:         newPaymentResponse(result.Payment),
		CustomerMessage: result.CustomerMessage,
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ListingID: line.ListingID,
			WeightKg:  line.Weight,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
	}
	return orderResponse{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		PlatformFee:  order.PlatformFee,
		FishermanNet: order.FishermanNet,
		Phone:        order.Phone,
		ExpiresAt:    order.ExpiresAt,
		Lines:        lines,
	}
}

func newPaymentResponse(txn *models.PaymentTransaction) *paymentResponse {
	if txn == nil {
		return nil
	}
	return &paymentResponse{
		CheckoutRequestID: txn.CheckoutRequestID,
		Status:            string(txn.Status),
		Amount:            txn.Amount,
		MpesaReceipt:      txn.MpesaReceipt,
		ResultDesc:        txn.ResultDesc,
	}
}
