// Package testutil starts disposable PostgreSQL instances for integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DiagnosticsSchema is a trimmed copy of the dashboard tables.
const DiagnosticsSchema = `
	CREATE TABLE vehicles (
		id    SERIAL PRIMARY KEY,
		vin   TEXT NOT NULL UNIQUE,
		make  TEXT NOT NULL,
		model TEXT NOT NULL,
		year  INTEGER NOT NULL
	);

	CREATE TABLE dtc_readings (
		id          SERIAL PRIMARY KEY,
		vehicle_id  INTEGER NOT NULL REFERENCES vehicles(id),
		code        TEXT NOT NULL,
		severity    TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	INSERT INTO vehicles (vin, make, model, year) VALUES
		('1HGCM82633A004352', 'Honda', 'Accord', 2003),
		('WVWZZZ1JZXW000001', 'Volkswagen', 'Golf', 1999),
		('JTDKB20U793123456', 'Toyota', 'Prius', 2009);

	INSERT INTO dtc_readings (vehicle_id, code, severity) VALUES
		(1, 'P0301', 'high'),
		(1, 'P0420', 'medium'),
		(2, 'P0171', 'medium'),
		(3, 'P0A80', 'critical');
`

// StartPostgres runs a PostgreSQL container, applies schema and returns a
// connection string. The test is skipped in -short mode.
func StartPostgres(t *testing.T, schema string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("obddash"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	if schema != "" {
		conn, err := pgx.Connect(ctx, connStr)
		require.NoError(t, err)
		defer func() { _ = conn.Close(ctx) }()

		_, err = conn.Exec(ctx, schema)
		require.NoError(t, err)
	}

	return connStr
}
