package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/omondidev/samaki-backend/internal/inventory"
	"github.com/omondidev/samaki-backend/internal/pricing"
	"github.com/omondidev/samaki-backend/pkg/db/models"
	"github.com/omondidev/samaki-backend/pkg/enums"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type listingLoader interface {
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	WithTx(tx *gorm.DB) inventory.Repository
}

type paymentInitiator interface {
	Initiate(ctx context.Context, order *models.Order) (*models.PaymentTransaction, error)
}

type paymentLoader interface {
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
}

type deliveryLoader interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
}

// CheckoutLine is one listing/weight pair requested by the customer.
type CheckoutLine struct {
	ListingID uuid.UUID
	Weight    decimal.Decimal
}

// CheckoutInput carries everything needed to open an order.
type CheckoutInput struct {
	CustomerID uuid.UUID
	Phone      string
	Lines      []CheckoutLine
}

// CheckoutResult is the created order plus the payment push handed back to
// the customer.
type CheckoutResult struct {
	Order           *models.Order
	Payment         *models.PaymentTransaction
	CustomerMessage string
}

// OrderView is the order with its latest payment and delivery state.
type OrderView struct {
	Order    *models.Order
	Payment  *models.PaymentTransaction
	Delivery *models.Delivery
}

// Service executes order orchestration.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	Cancel(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

type service struct {
	tx             txRunner
	repo           Repository
	guard          inventory.Guard
	listings       listingLoader
	initiator      paymentInitiator
	payments       paymentLoader
	deliveries     deliveryLoader
	logger         *logger.Logger
	reservationTTL time.Duration
	paymentWindow  time.Duration
	now            func() time.Time
}

// NewService builds the order service.
func NewService(
	tx txRunner,
	repo Repository,
	guard inventory.Guard,
	listings listingLoader,
	initiator paymentInitiator,
	payments paymentLoader,
	deliveries deliveryLoader,
	logg *logger.Logger,
	reservationTTL time.Duration,
	paymentWindow time.Duration,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing loader required")
	}
	if initiator == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reservationTTL <= 0 {
		reservationTTL = 10 * time.Minute
	}
	if paymentWindow <= 0 {
		paymentWindow = reservationTTL
	}
	return &service{
		tx:             tx,
		repo:           repo,
		guard:          guard,
		listings:       listings,
		initiator:      initiator,
		payments:       payments,
		deliveries:     deliveries,
		logger:         logg,
		reservationTTL: reservationTTL,
		paymentWindow:  paymentWindow,
		now:            time.Now,
	}, nil
}

// Checkout reserves stock, prices the order, and pushes the payment prompt.
// The order lands in AWAITING_PAYMENT when the gateway accepts the push; a
// rejected push releases the holds and fails the order, while an unreachable
// gateway leaves it PENDING for a retry within the payment window.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	phone, err := mpesa.NormalizePhone(input.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number")
	}

	now := s.now()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: NewOrderNumber(),
		CustomerID:  input.CustomerID,
		Status:      enums.OrderStatusPending,
		Phone:       phone,
		ExpiresAt:   now.Add(s.paymentWindow),
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// price snapshots must come from the same transaction that holds
		// the reservation locks
		listings := s.listings.WithTx(tx)

		requests := make([]inventory.ReservationRequest, len(input.Lines))
		for i, line := range input.Lines {
			requests[i] = inventory.ReservationRequest{ListingID: line.ListingID, Weight: line.Weight}
		}
		if _, err := s.guard.Reserve(ctx, tx, order.ID, now.Add(s.reservationTTL), requests); err != nil {
			return err
		}

		priceInputs := make([]pricing.LineInput, len(input.Lines))
		for i, line := range input.Lines {
			listing, err := listings.FindListing(ctx, line.ListingID)
			if err != nil {
				return err
			}
			priceInputs[i] = pricing.LineInput{
				ListingID:  line.ListingID,
				Weight:     line.Weight,
				PricePerKg: listing.PricePerKg,
			}
		}
		quote, err := pricing.PriceLines(priceInputs)
		if err != nil {
			return err
		}

		order.TotalAmount = quote.Total
		order.PlatformFee = quote.PlatformFee
		order.FishermanNet = quote.FishermanNet
		order.Lines = make([]models.OrderLine, len(quote.Lines))
		for i, line := range quote.Lines {
			order.Lines[i] = models.OrderLine{
				ID:           uuid.New(),
				OrderID:      order.ID,
				ListingID:    line.ListingID,
				Weight:       line.Weight,
				UnitPrice:    line.PricePerKg,
				Subtotal:     line.Subtotal,
				PlatformFee:  line.PlatformFee,
				FishermanNet: line.FishermanNet,
			}
		}
		return repo.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.initiator.Initiate(ctx, order)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnreachable) {
			// Keep the order PENDING with holds in place: the push may
			// still be retried within the window, and the sweep expires
			// the order if nothing lands.
			s.logger.Error(ctx, "payment gateway unreachable, order left pending", err)
			return nil, err
		}
		s.logger.Error(ctx, "payment initiation rejected, releasing holds", err)
		if failErr := s.failPending(ctx, order.ID); failErr != nil {
			s.logger.Error(ctx, "releasing holds after initiation failure", failErr)
		}
		return nil, err
	}

	if _, err := s.repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAwaitingPayment); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusAwaitingPayment

	s.logger.Info(s.logger.WithCheckoutRequestID(ctx, payment.CheckoutRequestID), "checkout complete, awaiting payment")
	return &CheckoutResult{
		Order:           order,
		Payment:         payment,
		CustomerMessage: "Check your phone to complete payment",
	}, nil
}

// Get returns the order with its latest payment attempt and delivery state.
func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	view := &OrderView{Order: order}
	if s.payments != nil {
		payment, err := s.payments.FindLatestByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		view.Payment = payment
	}
	if s.deliveries != nil {
		delivery, err := s.deliveries.FindByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		view.Delivery = delivery
	}
	return view, nil
}

// Cancel aborts an unpaid order and returns its holds to the listings.
func (s *service) Cancel(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if customerID != uuid.Nil && order.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := s.guard.Release(ctx, tx, order.ID, s.now()); err != nil {
			return err
		}
		moved, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order moved during cancellation")
		}
		order.Status = enums.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithOrderID(ctx, orderID.String()), "order cancelled")
	return cancelled, nil
}

// ExpireStale fails orders whose payment window lapsed and returns their
// holds. Each order is handled in its own transaction so one bad row does
// not wedge the sweep.
func (s *service) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	stale, err := s.repo.FindStale(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if order.Status.IsTerminal() || order.ExpiresAt.After(now) {
				return nil
			}

			if err := s.guard.Release(ctx, tx, order.ID, now); err != nil {
				return err
			}
			moved, err := repo.UpdateStatus(ctx, order.ID, order.Status, enums.OrderStatusFailed)
			if err != nil {
				return err
			}
			if moved {
				expired++
			}
			return nil
		})
		if err != nil {
			s.logger.Error(s.logger.WithOrderID(ctx, candidate.ID.String()), "expiring order failed", err)
		}
	}
	return expired, nil
}

// failPending releases holds and fails an order that never left PENDING.
func (s *service) failPending(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.guard.Release(ctx, tx, orderID, s.now()); err != nil {
			return err
		}
		_, err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusFailed)
		return err
	})
}

// NewOrderNumber returns a short upper-hex order reference.
func NewOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
