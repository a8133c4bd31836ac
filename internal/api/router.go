package api

import (
	"net/http"

	"github.com/ayo6706/booking-ledger/internal/api/handler"
	"github.com/ayo6706/booking-ledger/internal/api/middleware"
	"github.com/ayo6706/booking-ledger/internal/api/spec"
	"github.com/ayo6706/booking-ledger/internal/config"
	"github.com/ayo6706/booking-ledger/internal/idempotency"
	"github.com/ayo6706/booking-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services are the domain services the HTTP layer dispatches to.
type Services struct {
	Cancellation *service.CancellationService
	Accrual      *service.AccrualService
	Account      *service.AccountService
}

type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	services Services
	idem     *idempotency.Store
	health   map[string]handler.Pinger
}

func NewRouter(cfg *config.Config, logger *zap.Logger, services Services, idem *idempotency.Store, health map[string]handler.Pinger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, services: services, idem: idem, health: health}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Trace-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "X-Idempotent-Replay"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(api.health)
	cancelHandler := handler.NewCancelHandler(api.services.Cancellation)
	bookingHandler := handler.NewBookingHandler(api.services.Accrual)
	accountHandler := handler.NewAccountHandler(api.services.Account)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Guest cancellation, authorized by the emailed token rather than a session.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/cancel-token", cancelHandler.RequestToken)
		r.Post("/cancel", cancelHandler.Confirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.With(
			middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin),
			middleware.IdempotencyMiddleware(api.idem, api.logger),
		).Post("/v1/bookings/{category}/{id}/complete", bookingHandler.Complete)

		r.Get("/v1/accounts/{id}/balance", accountHandler.GetBalance)
		r.Get("/v1/accounts/{id}/entries", accountHandler.GetEntries)
		r.With(middleware.RequireRole(middleware.RoleAdmin)).Post("/v1/accounts/{id}/rebuild", accountHandler.Rebuild)
	})

	return r
}
