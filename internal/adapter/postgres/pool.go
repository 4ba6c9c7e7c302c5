package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
)

const pingTimeout = 10 * time.Second

// PoolConfig holds the fixed settings applied when the pool is created.
type PoolConfig struct {
	ConnString      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// AcquireTimeout bounds the wait for a free connection. Zero waits as
	// long as the caller's context allows.
	AcquireTimeout time.Duration
}

// NewPool parses cfg, creates a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	config.MaxConns = cfg.MaxConns
	if config.MaxConns <= 0 {
		config.MaxConns = domain.DefaultMaxConns
	}
	config.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		config.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}

	return pool, nil
}

// Manager owns the process-wide pool. The pool is created on first demand
// and recreated on the next demand after Close.
type Manager struct {
	cfg      PoolConfig
	recorder port.OpRecorder
	logger   *slog.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewManager(cfg PoolConfig, recorder port.OpRecorder, logger *slog.Logger) *Manager {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = domain.DefaultMaxConns
	}
	return &Manager{cfg: cfg, recorder: recorder, logger: logger}
}

// pgxPool returns the shared pool, creating it if needed. Creation failures
// are recorded and returned without retry.
func (m *Manager) pgxPool(ctx context.Context) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		return m.pool, nil
	}

	start := time.Now()
	pool, err := NewPool(ctx, m.cfg)
	if err != nil {
		m.recorder.Record(ctx, domain.NewLogEntry(domain.OpConnectionPool, start, false, err.Error()))
		return nil, err
	}
	m.pool = pool

	m.logger.InfoContext(ctx, "connection pool created",
		slog.String("db.system", "postgresql"),
		slog.Int("max_conns", int(m.cfg.MaxConns)),
		slog.Duration("duration", time.Since(start)),
	)
	return pool, nil
}

// Acquire checks out a connection for exclusive use. Waiters queue without
// limit unless AcquireTimeout is set.
func (m *Manager) Acquire(ctx context.Context) (port.Conn, error) {
	pool, err := m.pgxPool(ctx)
	if err != nil {
		return nil, err
	}

	acquireCtx := ctx
	if m.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.cfg.AcquireTimeout)
		defer cancel()
	}

	c, err := pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &conn{c: c}, nil
}

// Query runs sql on a pooled connection and returns it to the pool.
func (m *Manager) Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error) {
	c, err := m.Acquire(ctx)
	if err != nil {
		return domain.ResultSet{}, err
	}
	defer c.Release()

	return c.Query(ctx, sql, args)
}

// Close drains the pool and resets the manager to uninitialized. pgx waits
// for checked-out connections to be released; ctx bounds that wait.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	pool := m.pool
	m.pool = nil
	m.mu.Unlock()

	if pool == nil {
		return nil
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
		m.recorder.Record(ctx, domain.NewLogEntry(domain.OpConnectionPool, start, true, "Connection pool closed"))
		return nil
	case <-ctx.Done():
		err := fmt.Errorf("closing connection pool: %w", ctx.Err())
		m.recorder.Record(ctx, domain.NewLogEntry(domain.OpConnectionPool, start, false, err.Error()))
		return err
	}
}

// Stats reports pool usage. It never creates the pool.
func (m *Manager) Stats() domain.PoolStats {
	m.mu.Lock()
	pool := m.pool
	m.mu.Unlock()

	if pool == nil {
		return domain.PoolStats{MaxConns: m.cfg.MaxConns}
	}

	s := pool.Stat()
	return domain.PoolStats{
		Initialized:          true,
		MaxConns:             s.MaxConns(),
		TotalConns:           s.TotalConns(),
		AcquiredConns:        s.AcquiredConns(),
		IdleConns:            s.IdleConns(),
		AcquireCount:         s.AcquireCount(),
		EmptyAcquireCount:    s.EmptyAcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
	}
}
