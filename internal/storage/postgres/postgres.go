// Package postgres provides PostgreSQL persistence using pgx v5: a
// store.Store backend for player records and cooldown markers, and a
// durable issuance ledger.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Unwrenchable/fizz-caps/internal/config"
)

// ApplicationName tags every claim-server session in pg_stat_activity.
const ApplicationName = "fizz-caps"

const (
	// connectTimeout bounds the startup ping so a dead database fails boot fast.
	connectTimeout = 10 * time.Second
	// healthCheckPeriod is how often idle connections are checked and recycled.
	healthCheckPeriod = 30 * time.Second
)

// Pool owns the connection pool shared by the KV store and the issuance ledger.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the claim database described by cfg.
//
// Precondition: cfg must name a reachable database.
// Postcondition: Returns a pinged Pool or a non-nil error; no connections
// are left open on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config for %s: %w", cfg.Host, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening claim database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reaching claim database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases every pooled connection. It runs as a lifecycle shutdown hook
// after the HTTP server and scheduler have stopped.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for the KV store and ledger.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
