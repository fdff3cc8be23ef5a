package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgMaxConnIdleTime    = 5 * time.Minute
	pgHealthCheckPeriod  = 30 * time.Second
	pgConnectTimeout     = 5 * time.Second
	pgDefaultMinConns    = 1
	pgMaxConnLifetimeCap = time.Hour
)

// NewPostgresPool configures the ledger connection pool and verifies
// connectivity. Pool size comes from pool_max_conns in the URL when present.
func NewPostgresPool(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MinConns = max(cfg.MinConns, pgDefaultMinConns)
	cfg.MaxConnIdleTime = pgMaxConnIdleTime
	cfg.MaxConnLifetime = min(cfg.MaxConnLifetime, pgMaxConnLifetimeCap)
	cfg.HealthCheckPeriod = pgHealthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = pgConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("postgres connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)
	return pool, nil
}
