package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilomswe/smmhub-backend/api/controllers"
	"github.com/ilomswe/smmhub-backend/api/middleware"
	"github.com/ilomswe/smmhub-backend/internal/accounts"
	"github.com/ilomswe/smmhub-backend/internal/deposits"
	"github.com/ilomswe/smmhub-backend/internal/fulfillment"
	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/internal/orders"
	"github.com/ilomswe/smmhub-backend/internal/promos"
	"github.com/ilomswe/smmhub-backend/pkg/config"
	"github.com/ilomswe/smmhub-backend/pkg/db"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	pkgredis "github.com/ilomswe/smmhub-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *pkgredis.Client
	Accounts    accounts.Service
	Ledger      ledger.Service
	Deposits    deposits.Service
	Orders      orders.Service
	Promos      promos.Service
	Fulfillment fulfillment.Client
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// A nil *redis.Client must stay a nil interface so downstream guards work.
	var idempotencyStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		if deps.Redis != nil {
			r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
		} else {
			r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, nil))
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.RateLimit(cfg.RateLimit, deps.Redis, logg))
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/users", func(r chi.Router) {
			r.Post("/auth", controllers.UserAuth(deps.Accounts, logg))
			r.Get("/{telegramID}", controllers.UserGet(deps.Accounts, logg))
			r.Get("/{telegramID}/stats", controllers.UserStats(deps.Accounts, logg))
		})

		r.Get("/services", controllers.ServiceCatalog())

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderPlace(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(deps.Orders, logg))
		})

		r.Route("/balance", func(r chi.Router) {
			r.Get("/", controllers.BalanceGet(deps.Ledger, logg))
			r.Post("/deposit", controllers.BalanceDeposit(deps.Deposits, logg))
		})
		r.Get("/transactions", controllers.TransactionList(deps.Ledger, logg))

		r.Route("/promo", func(r chi.Router) {
			r.Post("/apply", controllers.PromoApply(deps.Promos, logg))
			r.Post("/validate", controllers.PromoValidate(deps.Promos, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.Admin, logg))

		r.Get("/stats", controllers.AdminStats(deps.Orders, logg))
		r.Get("/orders", controllers.AdminOrderList(deps.Orders, logg))
		r.Put("/orders/{orderID}", controllers.AdminOrderUpdate(deps.Orders, logg))
		r.Get("/users", controllers.AdminUserList(deps.Accounts, logg))
		r.Put("/users/{telegramID}/balance", controllers.AdminBalanceAdjust(deps.Accounts, logg))
		r.Get("/fulfillment/balance", controllers.AdminFulfillmentBalance(deps.Fulfillment, logg))

		r.Route("/promos", func(r chi.Router) {
			r.Get("/", controllers.AdminPromoList(deps.Promos, logg))
			r.Post("/", controllers.AdminPromoCreate(deps.Promos, logg))
			r.Delete("/{promoID}", controllers.AdminPromoDeactivate(deps.Promos, logg))
		})
	})

	return r
}
