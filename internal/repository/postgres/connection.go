package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/tasktracker/database"
	"github.com/dtroode/tasktracker/internal/model"
)

// DefaultAcquireTimeout bounds the wait for a free pooled connection.
const DefaultAcquireTimeout = 5 * time.Second

// PoolSettings sizes the shared connection pool.
type PoolSettings struct {
	MaxConns       int32
	AcquireTimeout time.Duration
}

type Connection struct {
	*pgxpool.Pool
	acquireTimeout time.Duration
}

func NewConnection(ctx context.Context, dsn string, settings PoolSettings) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if settings.MaxConns > 0 {
		conf.MaxConns = settings.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	timeout := settings.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	return &Connection{
		Pool:           pool,
		acquireTimeout: timeout,
	}, nil
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := conn.Ping(ctx); err != nil {
			return mapError(err, "failed to ping database")
		}
		return nil
	})
}

// withConn runs fn on a pooled connection. A caller that cannot get a
// connection within the acquire timeout fails with model.ErrPoolExhausted.
func (s *Connection) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	if s.Pool == nil {
		return fmt.Errorf("%w: connection pool is nil", model.ErrPersistence)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.Pool.Acquire(acquireCtx)
	if err != nil {
		return acquireError(ctx, err)
	}
	defer conn.Release()

	return fn(conn)
}

func acquireError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: no connection available", model.ErrPoolExhausted)
	}
	return fmt.Errorf("%w: failed to acquire connection: %w", model.ErrPersistence, err)
}
