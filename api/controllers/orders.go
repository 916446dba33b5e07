package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omondidev/samaki-backend/api/responses"
	"github.com/omondidev/samaki-backend/api/validators"
	"github.com/omondidev/samaki-backend/internal/orders"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

// OrderDetail returns the order with its latest payment attempt and
// delivery state.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderViewResponse(view))
	}
}

// CancelOrder aborts an unpaid order and returns its stock holds.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The customer id scopes the cancel; an empty body is an
		// unscoped (admin) cancel.
		var payload cancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), orderID, payload.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type cancelRequest struct {
	CustomerID uuid.UUID `json:"customer_id"`
}

type orderViewResponse struct {
	Order    orderResponse     `json:"order"`
	Payment  *paymentResponse  `json:"payment,omitempty"`
	Delivery *deliveryResponse `json:"delivery,omitempty"`
}

func newOrderViewResponse(view *orders.OrderView) orderViewResponse {
	if view == nil {
		return orderViewResponse{}
	}
	resp := orderViewResponse{
		Order:   newOrderResponse(view.Order),
		Payment: newPaymentResponse(view.Payment),
	}
	if view.Delivery != nil {
		delivery := newDeliveryResponse(view.Delivery, nil)
		resp.Delivery = &delivery
	}
	return resp
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderId")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}
	return orderID, nil
}
