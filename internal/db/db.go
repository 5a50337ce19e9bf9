package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clone-llm/internal/config"
)

// NewPool builds the connection pool every repository shares. The pool is
// sized for this service's own concurrency shape, not a generic default:
// WorkerPoolSize background extraction goroutines and whatever chat turns
// are mid-stream each hold a connection for the life of one query, so
// DBMaxConns needs headroom above cfg.WorkerPoolSize rather than the
// smaller number a request/response-only service would need.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)
	poolCfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping checks connectivity for the health endpoint's database probe.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
