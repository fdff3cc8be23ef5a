package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/slhnet/slh_ledger/internal/config"
	"github.com/slhnet/slh_ledger/internal/ledger"
	"github.com/slhnet/slh_ledger/internal/notification"
	"github.com/slhnet/slh_ledger/internal/reconcile"
	"github.com/slhnet/slh_ledger/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	store     ledger.Store
	scheduler *reconcile.Scheduler
	logger    *slog.Logger
}

// New picks the ledger backend, seeds the issuance rate and delegates route
// wiring to routes.Setup. A nil pool selects the in-memory ledger; a nil
// producer disables event publishing.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, producer sarama.SyncProducer, logger *slog.Logger) (*Server, error) {
	var store ledger.Store
	if db != nil {
		store = ledger.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory ledger")
		store = ledger.NewInMemory()
	}

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.SeedRate(seedCtx, cfg.TokenPrice, cfg.EntryFiatAmount); err != nil {
		return nil, fmt.Errorf("seed issuance rate: %w", err)
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(logger)}
	if producer != nil {
		notifiers = append(notifiers, notification.NewKafkaNotifier(producer, cfg.KafkaTopic, logger))
	}

	job := reconcile.NewJob(store, logger)
	scheduler, err := reconcile.NewScheduler(cfg.ReconcileSchedule, job, logger)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	if err := routes.Setup(app, routes.Deps{
		Cfg:       cfg,
		Store:     store,
		DB:        db,
		Cache:     cache,
		Notifier:  notifiers,
		Reconcile: job,
		Logger:    logger,
	}); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, store: store, scheduler: scheduler, logger: logger}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the reconcile schedule and the HTTP server.
func (s *Server) Listen() error {
	s.scheduler.Start()
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the reconcile schedule.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.scheduler.Stop(ctx)
	return err
}
