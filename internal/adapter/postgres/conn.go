package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
)

type conn struct {
	c *pgxpool.Conn
}

func (c *conn) Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error) {
	rows, err := c.c.Query(ctx, sql, args...)
	if err != nil {
		return domain.ResultSet{}, fmt.Errorf("executing query: %w", err)
	}
	return toResultSet(rows)
}

func (c *conn) Begin(ctx context.Context) (port.Tx, error) {
	t, err := c.c.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &tx{t: t}, nil
}

func (c *conn) Release() {
	c.c.Release()
}

type tx struct {
	t pgx.Tx
}

func (t *tx) Query(ctx context.Context, sql string, args []any) (domain.ResultSet, error) {
	rows, err := t.t.Query(ctx, sql, args...)
	if err != nil {
		return domain.ResultSet{}, fmt.Errorf("executing query: %w", err)
	}
	return toResultSet(rows)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.t.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.t.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return fmt.Errorf("rolling back transaction: %w", err)
}
