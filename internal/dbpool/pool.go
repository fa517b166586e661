package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPoolExhausted = errors.New("no connection became available within the acquire timeout")
	ErrPoolDraining  = errors.New("pool is draining, new acquisitions are rejected")
	ErrForcedClose   = errors.New("drain grace period elapsed, connections force-closed")
)

// Config describes the pool shape. It is loaded once at startup and is
// immutable afterwards.
type Config struct {
	// Driver is the database/sql driver name. Defaults to "mysql".
	Driver string
	// DSN is the connection string.
	DSN string
	// MinConns is the number of idle connections kept ready.
	MinConns int
	// MaxConns caps the number of open connections. Must be >= MinConns.
	MaxConns int
	// IdleTimeout closes connections idle longer than this.
	IdleTimeout time.Duration
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration
}

func (c Config) validate() error {
	if c.MinConns < 0 || c.MaxConns < 0 {
		return fmt.Errorf("pool sizes must be >= 0 (min=%d max=%d)", c.MinConns, c.MaxConns)
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("pool min size %d exceeds max size %d", c.MinConns, c.MaxConns)
	}
	if c.MaxConns == 0 {
		return errors.New("pool max size must be > 0")
	}
	return nil
}

// Pool hands out exclusively-owned database connections with a bounded
// acquire wait. The pooling itself (free list, connection reuse, idle
// eviction) is delegated to database/sql; this wrapper adds the acquire
// timeout, the outstanding-connection accounting, and the drain used by
// graceful shutdown.
//
// Admission goes through a weighted semaphore sized to MaxConns. Drain
// re-acquires every permit, which is exactly "wait until all in-flight
// connections are released".
type Pool struct {
	db             *sql.DB
	sem            *semaphore.Weighted
	maxConns       int64
	acquireTimeout time.Duration
	outstanding    atomic.Int64
	draining       atomic.Bool
}

// Open validates the config and establishes the pool. It pings the database
// so that a bad DSN fails at startup rather than on the first request.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "mysql"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Pool{
		db:             db,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConns)),
		maxConns:       int64(cfg.MaxConns),
		acquireTimeout: cfg.AcquireTimeout,
	}, nil
}

// Acquire checks a connection out of the pool. The returned Conn is owned
// exclusively by the caller until Release. Fails with ErrPoolExhausted when
// no connection frees up within the acquire timeout, and with ErrPoolDraining
// once shutdown has begun.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.draining.Load() {
		return nil, ErrPoolDraining
	}

	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrPoolExhausted
		}
		return nil, err
	}

	// Re-check: a drain may have started while we were waiting.
	if p.draining.Load() {
		p.sem.Release(1)
		return nil, ErrPoolDraining
	}

	sqlConn, err := p.db.Conn(ctx)
	if err != nil {
		p.sem.Release(1)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("failed to check out connection: %w", err)
	}

	p.outstanding.Add(1)
	return &Conn{pool: p, sqlConn: sqlConn}, nil
}

// Outstanding reports how many connections are currently checked out.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

// MaxConns reports the configured upper bound.
func (p *Pool) MaxConns() int64 {
	return p.maxConns
}

// Drain stops admissions and waits for every outstanding connection to be
// released, then closes the underlying pool. If ctx expires first the pool
// is force-closed and ErrForcedClose is returned. Safe to call more than
// once; later calls proceed straight to the forced close.
func (p *Pool) Drain(ctx context.Context) error {
	if !p.draining.CompareAndSwap(false, true) {
		// Already draining: idempotently force-close.
		p.db.Close()
		return nil
	}

	if err := p.sem.Acquire(ctx, p.maxConns); err != nil {
		p.db.Close()
		return ErrForcedClose
	}

	return p.db.Close()
}

// Conn is a pooled connection owned by exactly one in-flight request between
// Acquire and Release.
type Conn struct {
	pool     *Pool
	sqlConn  *sql.Conn
	released atomic.Bool
}

// Release returns the connection to the pool. It is safe on every exit path:
// releasing twice is a no-op, and a release error is reported to the caller
// for logging without ever invalidating the pool's accounting.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	err := c.sqlConn.Close()
	c.pool.outstanding.Add(-1)
	c.pool.sem.Release(1)
	if err != nil {
		return fmt.Errorf("failed to return connection to pool: %w", err)
	}
	return nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.sqlConn.QueryContext(ctx, query, args...)
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.sqlConn.ExecContext(ctx, query, args...)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.sqlConn.PrepareContext(ctx, query)
}
