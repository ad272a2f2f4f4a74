package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

const pingTimeout = 5 * time.Second

// PoolConfig parses the DSN and applies the pool limits from cfg.
func PoolConfig(cfg config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pc.MaxConns = cfg.PGMaxConns
	pc.MinConns = cfg.PGMinConns
	pc.MaxConnLifetime = cfg.PGMaxConnLifetime
	pc.MaxConnIdleTime = cfg.PGMaxConnIdleTime
	pc.HealthCheckPeriod = 30 * time.Second

	// Every session reads dates in the clinic zone.
	if cfg.Location != nil {
		pc.ConnConfig.RuntimeParams["timezone"] = cfg.Location.String()
	}
	return pc, nil
}

// ConnectPostgres opens a pool and pings it once so a bad DSN fails at startup.
func ConnectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
