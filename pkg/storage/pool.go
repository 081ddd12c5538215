// Package storage is the thin typed DAL over PostgreSQL that the Storage
// Layer component specifies in place of a reflective ORM: every
// query here is hand-written SQL bound through pgx/v5, and JSON/vector
// columns are materialized into the typed structs from pkg/models at the
// read/write boundary.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/negentropy-ai/engine/pkg/config"
)

// Pool wraps a pgxpool.Pool sized from DatabaseConfig (pool size ~5,
// overflow ~10, recycle ~1h).
type Pool struct {
	*pgxpool.Pool
}

// Open creates a connection pool and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.PoolSize + cfg.MaxOverflow)
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close releases all pooled connections.
func (p *Pool) Close() {
	p.Pool.Close()
}
