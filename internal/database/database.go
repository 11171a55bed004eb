package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultApplicationName = "mmp-tracker"
	defaultConnectTimeout  = 10 * time.Second
	healthTimeout          = 2 * time.Second
)

var ErrPoolClosed = errors.New("database pool is not initialized")

// Options tunes the connection pool. Zero values take the defaults above.
type Options struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnectTimeout  time.Duration
	ApplicationName string
}

func (o Options) poolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 && o.MinConns <= cfg.MaxConns {
		cfg.MinConns = o.MinConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	cfg.ConnConfig.ConnectTimeout = o.connectTimeout()
	name := o.ApplicationName
	if name == "" {
		name = defaultApplicationName
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = name
	return cfg, nil
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return defaultConnectTimeout
}

type DB struct {
	Pool *pgxpool.Pool
}

// Open builds the pool and waits for a first successful ping, bounded by the connect
// timeout.
func Open(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := opts.poolConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.ConnConfig.Host, err)
	}

	slog.Info("database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// Health pings the pool with a short deadline so /health never hangs on a stalled database.
func (db *DB) Health(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return ErrPoolClosed
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := db.Pool.Ping(ctx); err != nil {
		stat := db.Pool.Stat()
		return fmt.Errorf("ping database (%d/%d conns in use): %w", stat.AcquiredConns(), stat.MaxConns(), err)
	}
	return nil
}
