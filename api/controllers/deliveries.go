package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/omondidev/samaki-backend/api/responses"
	"github.com/omondidev/samaki-backend/api/validators"
	"github.com/omondidev/samaki-backend/internal/deliveries"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

// DeliveryDetail returns the order's delivery with its audit trail.
func DeliveryDetail(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, audit, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDeliveryResponse(delivery, audit))
	}
}

// UpdateDelivery applies one fulfillment transition on behalf of the
// acting fisherman, courier, or admin.
func UpdateDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseDeliveryStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}
		role, err := enums.ParseActorRole(payload.ActorRole)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor role"))
			return
		}

		delivery, err := svc.UpdateStatus(r.Context(), deliveries.UpdateInput{
			OrderID:     orderID,
			Target:      target,
			ActorID:     payload.ActorID,
			ActorRole:   role,
			Note:        payload.Note,
			EstimatedAt: payload.EstimatedAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDeliveryResponse(delivery, nil))
	}
}

type deliveryUpdateRequest struct {
	Status      string     `json:"status" validate:"required"`
	ActorID     uuid.UUID  `json:"actor_id" validate:"required"`
	ActorRole   string     `json:"actor_role" validate:"required"`
	Note        *string    `json:"note,omitempty"`
	EstimatedAt *time.Time `json:"estimated_at,omitempty"`
}

type deliveryResponse struct {
	OrderID     uuid.UUID               `json:"order_id"`
	Status      string                  `json:"status"`
	EstimatedAt *time.Time              `json:"estimated_at,omitempty"`
	DeliveredAt *time.Time              `json:"delivered_at,omitempty"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Audit       []deliveryAuditResponse `json:"audit,omitempty"`
}

type deliveryAuditResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    uuid.UUID `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newDeliveryResponse(delivery *models.Delivery, audit []models.DeliveryAuditLog) deliveryResponse {
	if delivery == nil {
		return deliveryResponse{}
	}
	resp := deliveryResponse{
		OrderID:     delivery.OrderID,
		Status:      string(delivery.Status),
		EstimatedAt: delivery.EstimatedAt,
		DeliveredAt: delivery.DeliveredAt,
		UpdatedAt:   delivery.UpdatedAt,
	}
	for _, entry := range audit {
		resp.Audit = append(resp.Audit, deliveryAuditResponse{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			ActorID:    entry.ActorID,
			ActorRole:  string(entry.ActorRole),
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}
