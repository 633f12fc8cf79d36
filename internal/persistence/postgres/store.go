// Package postgres persists spreads, signals, events, orders and ledger rows
// behind a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the per-concern repositories over one pool.
type Store struct {
	pool     *pgxpool.Pool
	Settings *SettingsStore
	Market   *MarketStore
	Trading  *TradingStore
}

// New constructs a store backed by the provided pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		Settings: &SettingsStore{pool: pool},
		Market:   &MarketStore{pool: pool},
		Trading:  &TradingStore{pool: pool},
	}
}

// Pool exposes the underlying pgx pool.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Connect opens a pool against the DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
