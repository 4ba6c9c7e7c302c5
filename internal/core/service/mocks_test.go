package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock OpRecorder ---

type memRecorder struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (r *memRecorder) Record(_ context.Context, e domain.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *memRecorder) all() []domain.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LogEntry(nil), r.entries...)
}

// --- mock ResultCache ---

type mapCache struct {
	values map[string]domain.ResultSet
	ttls   map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string]domain.ResultSet{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(key string) (domain.ResultSet, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *mapCache) Set(key string, value domain.ResultSet, ttl time.Duration) {
	c.values[key] = value
	c.ttls[key] = ttl
}

func (c *mapCache) Clear()   { clear(c.values) }
func (c *mapCache) Len() int { return len(c.values) }

// --- mock ConnectionPool / Conn / Tx ---

type mockTx struct {
	// failAt is the 1-based statement index that fails; 0 means none.
	failAt     int
	failErr    error
	commitErr  error
	executed   []string
	committed  bool
	rolledBack bool
}

func (t *mockTx) Query(_ context.Context, sql string, _ []any) (domain.ResultSet, error) {
	t.executed = append(t.executed, sql)
	if t.failAt == len(t.executed) {
		return domain.ResultSet{}, t.failErr
	}
	return domain.ResultSet{Rows: []map[string]any{}, RowsAffected: 1, Command: "INSERT 0 1"}, nil
}

func (t *mockTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *mockTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type mockConn struct {
	tx       *mockTx
	beginErr error
	released int
}

func (c *mockConn) Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error) {
	return c.tx.Query(ctx, sql, args)
}

func (c *mockConn) Begin(context.Context) (port.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *mockConn) Release() { c.released++ }

type mockPool struct {
	mu         sync.Mutex
	result     domain.ResultSet
	err        error
	queryCalls int
	lastSQL    string
	conn       *mockConn
	acquireErr error
}

func (p *mockPool) Query(_ context.Context, sql string, _ []any) (domain.ResultSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryCalls++
	p.lastSQL = sql
	return p.result, p.err
}

func (p *mockPool) Acquire(context.Context) (port.Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.conn, nil
}

func (p *mockPool) Stats() domain.PoolStats      { return domain.PoolStats{} }
func (p *mockPool) Close(context.Context) error { return nil }

func (p *mockPool) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queryCalls
}
