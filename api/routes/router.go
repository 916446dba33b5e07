package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omondidev/samaki-backend/api/controllers"
	webhookcontrollers "github.com/omondidev/samaki-backend/api/controllers/webhooks"
	"github.com/omondidev/samaki-backend/api/middleware"
	"github.com/omondidev/samaki-backend/internal/deliveries"
	"github.com/omondidev/samaki-backend/internal/orders"
	"github.com/omondidev/samaki-backend/internal/payments"
	"github.com/omondidev/samaki-backend/pkg/config"
	"github.com/omondidev/samaki-backend/pkg/db"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	deliveriesSvc deliveries.Service,
	reconciler *payments.Reconciler,
	callbackGuard *payments.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.Checkout(ordersSvc, logg))
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.OrderDetail(ordersSvc, logg))
			r.Post("/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.Route("/delivery", func(r chi.Router) {
				r.Get("/", controllers.DeliveryDetail(deliveriesSvc, logg))
				r.Post("/", controllers.UpdateDelivery(deliveriesSvc, logg))
			})
		})
		r.Post("/webhooks/mpesa", webhookcontrollers.MpesaCallback(reconciler, callbackGuard, cfg.Mpesa, logg))
	})

	return r
}
