package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omondidev/samaki-backend/api/routes"
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

const callbackIdempotencyScope = "mpesa_callback"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	callbackGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Checkout.PaymentWindow, callbackIdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create callback guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, deliveriesSvc, reconciler, callbackGuard),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
