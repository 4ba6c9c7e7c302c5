package port

import (
	"context"

	"github.com/guillermoBallester/obddash/internal/core/domain"
)

// ConnectionPool owns the process-wide set of database connections.
type ConnectionPool interface {
	// Query runs a single statement on a pooled connection.
	Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error)
	// Acquire checks out a connection for exclusive use. Callers must Release it.
	Acquire(ctx context.Context) (Conn, error)
	Stats() domain.PoolStats
	Close(ctx context.Context) error
}

// Conn is a checked-out physical connection.
type Conn interface {
	Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error)
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// Tx is an open transaction on a single connection. Rollback after a
// successful Commit is a no-op.
type Tx interface {
	Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
