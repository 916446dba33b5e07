package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omondidev/samaki-backend/internal/cron"
	"github.com/omondidev/samaki-backend/internal/deliveries"
	"github.com/omondidev/samaki-backend/internal/inventory"
	"github.com/omondidev/samaki-backend/internal/orders"
	"github.com/omondidev/samaki-backend/internal/payments"
	"github.com/omondidev/samaki-backend/pkg/config"
	"github.com/omondidev/samaki-backend/pkg/db"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/metrics"
	"github.com/omondidev/samaki-backend/pkg/migrate"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
	"github.com/omondidev/samaki-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := mpesa.NewClient(cfg.Mpesa, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mpesa client", err)
		os.Exit(1)
	}

	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	guard, err := inventory.NewGuard(inventoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory guard", err)
		os.Exit(1)
	}

	paymentsRepo := payments.NewRepository(dbClient.DB())
	initiator, err := payments.NewInitiator(paymentsRepo, gateway, logg, reconcileMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment initiator", err)
		os.Exit(1)
	}

	deliveriesRepo := deliveries.NewRepository(dbClient.DB())
	deliveriesSvc, err := deliveries.NewService(dbClient, deliveriesRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(
		dbClient,
		ordersRepo,
		guard,
		inventoryRepo,
		initiator,
		paymentsRepo,
		deliveriesRepo,
		logg,
		cfg.Checkout.ReservationTTL,
		cfg.Checkout.PaymentWindow,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(dbClient, paymentsRepo, ordersRepo, guard, deliveriesSvc, logg, reconcileMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger: logg,
		Orders: ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation sweep job", err)
		os.Exit(1)
	}
	pollJob, err := cron.NewPaymentStatusPollJob(cron.PaymentStatusPollJobParams{
		Logger:    logg,
		Payments:  paymentsRepo,
		Gateway:   gateway,
		Reconcile: reconciler,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment status poll job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, pollJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
