package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "booking-ledger"

// PoolOptions tunes the pgx pool. Zero values fall back to defaults.
type PoolOptions struct {
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 10
	}
	if o.MinConns <= 0 {
		o.MinConns = 2
	}
	if o.MinConns > o.MaxConns {
		o.MinConns = o.MaxConns
	}
	return o
}

// Connect opens a pool against dbURL and verifies it with a ping.
func Connect(ctx context.Context, dbURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	opts = opts.withDefaults()
	config.MaxConns = opts.MaxConns
	config.MinConns = opts.MinConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.ConnConfig.RuntimeParams["application_name"] = applicationName
	if opts.StatementTimeout > 0 {
		// Postgres takes statement_timeout in milliseconds.
		config.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return pool, nil
}
