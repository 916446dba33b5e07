package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/omondidev/samaki-backend/pkg/logger"
)

const defaultSweepBatch = 100

type orderExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

// ReservationSweepJobParams configure the stale order sweep.
type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	BatchSize int
}

// NewReservationSweepJob builds the job that fails orders whose payment
// window lapsed and returns their stock holds.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &reservationSweepJob{
		logg:   params.Logger,
		orders: params.Orders,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type reservationSweepJob struct {
	logg   *logger.Logger
	orders orderExpirer
	batch  int
	now    func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireStale(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "stale order sweep complete")
	return nil
}
