package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/slhnet/slh_ledger/internal/admin"
	"github.com/slhnet/slh_ledger/internal/config"
	"github.com/slhnet/slh_ledger/internal/issuance"
	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/metrics"
	"github.com/slhnet/slh_ledger/internal/middleware"
	"github.com/slhnet/slh_ledger/internal/notification"
	"github.com/slhnet/slh_ledger/internal/reconcile"
	"github.com/slhnet/slh_ledger/internal/staking"
	"github.com/slhnet/slh_ledger/internal/transfer"
	"github.com/slhnet/slh_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	Store     ledger.Store
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Notifier  notification.Notifier
	Reconcile *reconcile.Job
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return fmt.Errorf("ledger store is required")
	}
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	if d.Reconcile == nil {
		d.Reconcile = reconcile.NewJob(d.Store, d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(metrics.Middleware())

	// Operational
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Services and handlers
	walletSvc := wallet.NewService(d.Store, d.Logger)
	transferSvc := transfer.NewService(d.Store, d.Notifier, d.Logger)
	stakingSvc := staking.NewService(d.Store, d.Notifier, d.Cfg.StakingDefaultAPY, d.Logger)
	issuanceSvc := issuance.NewService(d.Store, d.Notifier, d.Cfg.IssuancePrecision, d.Logger)
	reporter := admin.NewReporter(d.Store, admin.StorePaymentStats{Store: d.Store}, admin.RedisReferralCounter{Client: d.Cache}, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Admin routes are registered first so the member group's owner check
	// does not shadow them.
	adminGroup := api.Group("/admin", middleware.AdminAuth(d.Cfg.AdminTokenHash, d.Logger))
	RegisterAdminRoutes(adminGroup, AdminHandlers{
		Snapshots: admin.NewHandler(reporter),
		Issuance:  issuance.NewHandler(issuanceSvc),
		Reconcile: reconcile.NewHandler(d.Reconcile),
	})

	member := api.Group("", middleware.Owner(), middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMinute, d.Logger))
	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterMemberRoutes(member, MemberHandlers{
		Wallet:   wallet.NewHandler(walletSvc),
		Transfer: transfer.NewHandler(transferSvc),
		Staking:  staking.NewHandler(stakingSvc),
	}, idempotent)

	return nil
}
