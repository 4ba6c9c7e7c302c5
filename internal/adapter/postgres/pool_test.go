package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/guillermoBallester/obddash/internal/adapter/postgres"
	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/oplog"
	"github.com/guillermoBallester/obddash/internal/testutil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(t *testing.T, connStr string) (*postgres.Manager, *oplog.Store) {
	t.Helper()
	store := oplog.NewStore(0)
	rec := oplog.NewRecorder(store, testLogger(), nil)
	m := postgres.NewManager(postgres.PoolConfig{ConnString: connStr}, rec, testLogger())
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, store
}

func TestManager_CreationFailureIsRecorded(t *testing.T) {
	m, store := newManager(t, "postgres://test@localhost:notaport/obddash")

	_, err := m.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing database URL")

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OpConnectionPool, entries[0].Operation)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].Message, "parsing database URL")
	assert.False(t, m.Stats().Initialized, "failed creation must leave the manager uninitialized")
}

func TestManager_CloseUninitializedIsNoop(t *testing.T) {
	m, store := newManager(t, "postgres://unused")

	require.NoError(t, m.Close(context.Background()))
	assert.Empty(t, store.Entries())
}

func TestManager_StatsBeforeUse(t *testing.T) {
	m, _ := newManager(t, "postgres://unused")

	stats := m.Stats()
	assert.False(t, stats.Initialized)
	assert.Equal(t, int32(domain.DefaultMaxConns), stats.MaxConns)
}

func TestManager_LazyCreateCloseRecreate(t *testing.T) {
	connStr := testutil.StartPostgres(t, testutil.DiagnosticsSchema)
	m, store := newManager(t, connStr)
	ctx := context.Background()

	assert.False(t, m.Stats().Initialized)

	rs, err := m.Query(ctx, "SELECT count(*) AS total FROM vehicles", nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, int64(3), rs.Rows[0]["total"])

	stats := m.Stats()
	assert.True(t, stats.Initialized)
	assert.Equal(t, int32(domain.DefaultMaxConns), stats.MaxConns)

	require.NoError(t, m.Close(ctx))
	assert.False(t, m.Stats().Initialized)

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OpConnectionPool, entries[0].Operation)
	assert.True(t, entries[0].Success)

	_, err = m.Query(ctx, "SELECT 1", nil)
	require.NoError(t, err, "the pool must be recreated on demand after close")
	assert.True(t, m.Stats().Initialized)
}

func TestManager_QueryResultShapes(t *testing.T) {
	connStr := testutil.StartPostgres(t, testutil.DiagnosticsSchema)
	m, _ := newManager(t, connStr)
	ctx := context.Background()

	rs, err := m.Query(ctx, "SELECT vin, year FROM vehicles WHERE year > $1 ORDER BY year", []any{2000})
	require.NoError(t, err)
	assert.Equal(t, []string{"vin", "year"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "1HGCM82633A004352", rs.Rows[0]["vin"])
	assert.Equal(t, 2, rs.RowCount())

	rs, err = m.Query(ctx, "UPDATE vehicles SET model = model WHERE year < $1", []any{2010})
	require.NoError(t, err)
	assert.Empty(t, rs.Columns)
	assert.Equal(t, int64(3), rs.RowsAffected)
	assert.Equal(t, "UPDATE 3", rs.Command)
	assert.Equal(t, 1, rs.RowCount(), "command results count as one logical row")
}

func TestManager_QueryError(t *testing.T) {
	connStr := testutil.StartPostgres(t, testutil.DiagnosticsSchema)
	m, _ := newManager(t, connStr)

	_, err := m.Query(context.Background(), "SELECT * FROM no_such_table", nil)
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "42P01", pgErr.Code)
}

func TestManager_AcquireTransactionRollback(t *testing.T) {
	connStr := testutil.StartPostgres(t, testutil.DiagnosticsSchema)
	m, _ := newManager(t, connStr)
	ctx := context.Background()

	c, err := m.Acquire(ctx)
	require.NoError(t, err)

	tx, err := c.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Query(ctx, "INSERT INTO vehicles (vin, make, model, year) VALUES ($1, $2, $3, $4)",
		[]any{"5YJ3E1EA7KF000001", "Tesla", "Model 3", 2019})
	require.NoError(t, err)

	rs, err := tx.Query(ctx, "SELECT count(*) AS total FROM vehicles", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rs.Rows[0]["total"], "earlier statements are visible inside the transaction")

	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx), "second rollback is a no-op")
	c.Release()

	rs, err = m.Query(ctx, "SELECT count(*) AS total FROM vehicles", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rs.Rows[0]["total"])
}

func TestManager_AcquireTimeout(t *testing.T) {
	connStr := testutil.StartPostgres(t, "")
	store := oplog.NewStore(0)
	m := postgres.NewManager(postgres.PoolConfig{
		ConnString:     connStr,
		MaxConns:       1,
		AcquireTimeout: 200 * time.Millisecond,
	}, oplog.NewRecorder(store, testLogger(), nil), testLogger())
	ctx := context.Background()

	held, err := m.Acquire(ctx)
	require.NoError(t, err)

	_, err = m.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	held.Release()
	require.NoError(t, m.Close(ctx))
}

func TestManager_CloseTimesOutWithCheckedOutConnection(t *testing.T) {
	connStr := testutil.StartPostgres(t, "")
	m, store := newManager(t, connStr)
	ctx := context.Background()

	held, err := m.Acquire(ctx)
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err = m.Close(closeCtx)
	require.Error(t, err)

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OpConnectionPool, entries[0].Operation)
	assert.False(t, entries[0].Success)

	held.Release()
}
