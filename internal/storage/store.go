package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrStoreUnavailable is returned by Acquire when the backing store cannot
// produce a connection. Callers treat it as a normal degraded outcome, not a
// reason to crash.
var ErrStoreUnavailable = errors.New("store unavailable")

const (
	// DefaultPoolSize bounds concurrent connections when config leaves it unset.
	DefaultPoolSize = 5

	initAttempts = 3
)

// Store lazily manages a bounded pgx connection pool. The pool is created on
// first Acquire; initialization is retried a fixed number of times with a
// fixed delay, and total failure leaves the pool absent so a later Acquire
// can try again.
type Store struct {
	dsn      string
	maxConns int32
	logger   *zap.Logger

	// overridable so tests can stub dialing and shrink the retry delay
	connect   func(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error)
	initDelay time.Duration

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func New(dsn string, maxConns int32, logger *zap.Logger) *Store {
	if maxConns <= 0 {
		maxConns = DefaultPoolSize
	}
	s := &Store{
		dsn:       dsn,
		maxConns:  maxConns,
		logger:    logger,
		initDelay: 2 * time.Second,
	}
	s.connect = s.defaultConnect
	return s
}

// Acquire checks out one connection. The caller must Release it on every
// path. Acquire never panics; ErrStoreUnavailable covers both failed pool
// initialization and checkout failure.
func (s *Store) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("Connection checkout failed", zap.Error(err))
		return nil, ErrStoreUnavailable
	}
	return conn, nil
}

// Ping reports whether the store is reachable, initializing the pool if
// needed.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

func (s *Store) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return s.pool, nil
	}

	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		pool, err := s.connect(ctx, s.dsn, s.maxConns)
		if err == nil {
			s.logger.Info("Connection pool initialized",
				zap.Int32("max_conns", s.maxConns),
				zap.Int("attempt", attempt),
			)
			s.pool = pool
			return pool, nil
		}
		lastErr = err
		s.logger.Warn("Connection pool initialization failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", initAttempts),
			zap.Error(err),
		)
		if attempt < initAttempts {
			select {
			case <-time.After(s.initDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("pool initialization canceled: %w", ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("pool initialization failed after %d attempts: %w", initAttempts, lastErr)
}

func (s *Store) defaultConnect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnIdleTime = time.Minute
	poolCfg.ConnConfig.Tracer = newSlowQueryTracer(s.logger, slowQueryThreshold)

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return pool, nil
}
